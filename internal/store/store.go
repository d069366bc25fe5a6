package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store/config"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/syslog"
	"github.com/podvault/podvault/internal/utils/safemap"
	"github.com/podvault/podvault/internal/worker"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrBatchActive   = errors.New("batch is still running; request cancellation first")
	ErrNoTargets     = errors.New("no targets given")
)

// workerRef hands the engine its worker client through one level of
// indirection, so a config reload swaps the client under running code.
type workerRef struct {
	client atomic.Pointer[worker.Client]
}

func (w *workerRef) load() *worker.Client {
	return w.client.Load()
}

func (w *workerRef) CheckBusy(ctx context.Context) (types.LockStatus, error) {
	return w.load().CheckBusy(ctx)
}

func (w *workerRef) Submit(ctx context.Context, targetID string, opts types.SubmitOptions) (types.SubmitResult, error) {
	return w.load().Submit(ctx, targetID, opts)
}

func (w *workerRef) Status(ctx context.Context, token string) (types.ProgressUpdate, error) {
	return w.load().Status(ctx, token)
}

// Store wires the worker client, the batch runner, and the in-memory
// batch registry behind one handle the API controllers close over.
// Batches live only as long as the process; the worker is the durable
// source of truth for backup artifacts.
type Store struct {
	Ctx    context.Context
	Runner *orchestrator.Runner

	worker *workerRef
	poller *orchestrator.Poller

	appConfig *config.AppConfig
	configMu  sync.RWMutex

	batches *safemap.Map[string, *types.Batch]
}

func NewStore(ctx context.Context, cfg *config.AppConfig, presenter orchestrator.Presenter) *Store {
	ref := &workerRef{}
	ref.client.Store(worker.NewClient(cfg.Worker.URL, cfg.Worker.Token))

	poller := orchestrator.NewPoller(ref, cfg.PollInterval(), cfg.JobTimeout())
	runner := orchestrator.NewRunner(ref, poller, presenter,
		orchestrator.WithBackoff(cfg.ConflictBackoff()),
		orchestrator.WithScheduleBudget(cfg.JobTimeout()),
		orchestrator.WithMetrics(orchestrator.DefaultMetrics()),
	)

	return &Store{
		Ctx:       ctx,
		Runner:    runner,
		worker:    ref,
		poller:    poller,
		appConfig: cfg,
		batches:   safemap.New[string, *types.Batch](),
	}
}

// Worker returns the current worker client. The pointer is swapped on
// config reload; callers must not cache it across requests.
func (s *Store) Worker() *worker.Client {
	return s.worker.load()
}

func (s *Store) GetAppConfig() *config.AppConfig {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.appConfig
}

// ApplyConfig swaps in a reloaded config. The worker client is replaced
// atomically and the engine cadence is updated in place; jobs already
// inside a poll loop keep the budget they started with.
func (s *Store) ApplyConfig(cfg *config.AppConfig) {
	s.configMu.Lock()
	s.appConfig = cfg
	s.configMu.Unlock()

	s.worker.client.Store(worker.NewClient(cfg.Worker.URL, cfg.Worker.Token))
	s.poller.SetCadence(cfg.PollInterval(), cfg.JobTimeout())
	s.Runner.SetCadence(cfg.ConflictBackoff(), cfg.JobTimeout())
}

// StartBatch creates a batch for the named targets, in the order
// received, and begins driving it. Only one batch may be in progress
// process-wide.
func (s *Store) StartBatch(kind types.OperationKind, targets []types.Target, snapshotIDs map[string]string) (*types.Batch, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	if err := s.Worker().CheckVersion(s.Ctx); err != nil {
		return nil, err
	}

	batch := types.NewBatch(uuid.NewString(), kind, targets, snapshotIDs)

	if err := s.Runner.StartBatch(s.Ctx, batch); err != nil {
		return nil, err
	}

	s.batches.Set(batch.ID, batch)
	return batch, nil
}

// StartSingle runs one ad-hoc operation with the immediate-busy
// semantics of the single path, and registers the resulting
// one-job batch so the UI can follow it.
func (s *Store) StartSingle(target types.Target, kind types.OperationKind, snapshotID string) (*types.Batch, error) {
	batch, err := s.Runner.StartSingle(s.Ctx, target, kind, snapshotID)
	if err != nil {
		return nil, err
	}

	s.batches.Set(batch.ID, batch)
	return batch, nil
}

func (s *Store) GetBatch(id string) (*types.Batch, error) {
	batch, ok := s.batches.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return batch, nil
}

// CancelBatch requests cooperative cancellation: no new jobs are
// started, the running one finishes naturally.
func (s *Store) CancelBatch(id string) error {
	batch, err := s.GetBatch(id)
	if err != nil {
		return err
	}

	batch.RequestCancel()
	syslog.L.Info().WithBatch(id).WithMessage("batch cancellation requested").Write()
	return nil
}

// DismissBatch discards a terminal batch and its jobs. A running batch
// cannot be dismissed.
func (s *Store) DismissBatch(id string) error {
	batch, err := s.GetBatch(id)
	if err != nil {
		return err
	}

	snapshot := batch.Snapshot()
	if !snapshot.State.IsTerminal() {
		return ErrBatchActive
	}

	s.batches.Del(id)
	return nil
}

// ListBatches returns snapshots of every registered batch.
func (s *Store) ListBatches() []types.BatchView {
	views := make([]types.BatchView, 0, s.batches.Len())
	s.batches.ForEach(func(_ string, b *types.Batch) bool {
		views = append(views, b.Snapshot())
		return true
	})
	return views
}
