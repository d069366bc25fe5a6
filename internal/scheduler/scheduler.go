package scheduler

import (
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/config"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/syslog"
)

// Scheduler starts batches on cron schedules from the config file. A
// firing that lands while another batch is in progress is skipped with
// a warning; the single-batch guard is authoritative.
type Scheduler struct {
	storeInstance *store.Store
	cron          *cron.Cron
}

func New(storeInstance *store.Store) *Scheduler {
	return &Scheduler{
		storeInstance: storeInstance,
		cron:          cron.New(),
	}
}

// Reload replaces all schedule entries with the ones in cfg.
func (s *Scheduler) Reload(cfg *config.AppConfig) {
	for _, entry := range s.cron.Entries() {
		s.cron.Remove(entry.ID)
	}

	for _, sched := range cfg.Schedules {
		kind := types.OperationKind(sched.Kind)
		if kind == "" {
			kind = types.KindBackup
		}

		targets := make([]types.Target, 0, len(sched.Targets))
		for _, id := range sched.Targets {
			targets = append(targets, types.Target{ID: id, DisplayName: id})
		}

		spec := sched.Cron
		if _, err := s.cron.AddFunc(spec, func() {
			s.fire(kind, targets, spec)
		}); err != nil {
			syslog.L.Error(err).
				WithMessage("invalid schedule, skipping").
				WithField("cron", spec).
				Write()
		}
	}
}

func (s *Scheduler) fire(kind types.OperationKind, targets []types.Target, spec string) {
	batch, err := s.storeInstance.StartBatch(kind, targets, nil)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBatchInProgress) {
			syslog.L.Warn().
				WithMessage("scheduled batch skipped, another batch is in progress").
				WithField("cron", spec).
				Write()
			return
		}
		syslog.L.Error(err).
			WithMessage("scheduled batch failed to start").
			WithField("cron", spec).
			Write()
		return
	}

	syslog.L.Info().
		WithBatch(batch.ID).
		WithMessage("scheduled batch started").
		WithField("cron", spec).
		WithField("targets", len(targets)).
		Write()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
