package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/podvault/podvault/internal/store/constants"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/syslog"
)

var (
	ErrBatchInProgress = errors.New("a batch is already in progress")
	ErrBatchEmpty      = errors.New("batch has no targets")
)

// WorkerAPI is the slice of the worker client the runner drives.
type WorkerAPI interface {
	StatusReader
	CheckBusy(ctx context.Context) (types.LockStatus, error)
	Submit(ctx context.Context, targetID string, opts types.SubmitOptions) (types.SubmitResult, error)
}

// Runner owns batch execution. Targets are processed strictly in
// submission order with at most one job running and polled at a time;
// the remote single-flight lock makes the same true remotely. One
// runner drives at most one batch at any moment.
type Runner struct {
	api       WorkerAPI
	poller    *Poller
	presenter Presenter
	metrics   *Metrics

	backoff        atomic.Int64
	scheduleBudget atomic.Int64

	active atomic.Pointer[types.Batch]
	done   atomic.Pointer[chan struct{}]
}

type RunnerOption func(*Runner)

// WithBackoff overrides the conflict resubmission interval.
func WithBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) { r.backoff.Store(int64(d)) }
}

// WithScheduleBudget overrides how long one target may spend in
// conflict retries before it is marked unschedulable.
func WithScheduleBudget(d time.Duration) RunnerOption {
	return func(r *Runner) { r.scheduleBudget.Store(int64(d)) }
}

func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(api WorkerAPI, poller *Poller, presenter Presenter, opts ...RunnerOption) *Runner {
	if presenter == nil {
		presenter = NopPresenter
	}

	r := &Runner{
		api:       api,
		poller:    poller,
		presenter: presenter,
	}
	r.backoff.Store(int64(constants.ConflictBackoff))
	r.scheduleBudget.Store(int64(constants.JobTimeout))
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetCadence updates the conflict backoff and per-target scheduling
// budget, typically after a config reload. Takes effect at the next
// retry decision; targets already inside a backoff sleep keep the old
// interval for that one sleep.
func (r *Runner) SetCadence(backoff, scheduleBudget time.Duration) {
	if backoff > 0 {
		r.backoff.Store(int64(backoff))
	}
	if scheduleBudget > 0 {
		r.scheduleBudget.Store(int64(scheduleBudget))
	}
}

func (r *Runner) conflictBackoff() time.Duration {
	return time.Duration(r.backoff.Load())
}

func (r *Runner) budget() time.Duration {
	return time.Duration(r.scheduleBudget.Load())
}

// Active returns the batch currently being driven, or nil.
func (r *Runner) Active() *types.Batch {
	return r.active.Load()
}

// StartBatch begins driving batch in a background goroutine. Only one
// batch may be in flight; a second start attempt fails immediately and
// the caller must retry after the current batch ends.
func (r *Runner) StartBatch(ctx context.Context, batch *types.Batch) error {
	if len(batch.Jobs) == 0 {
		return ErrBatchEmpty
	}

	if !r.active.CompareAndSwap(nil, batch) {
		return ErrBatchInProgress
	}

	done := make(chan struct{})
	r.done.Store(&done)

	go func() {
		defer close(done)
		defer r.active.Store(nil)
		r.run(ctx, batch)
	}()

	return nil
}

// Wait blocks until the current batch finishes. Only meaningful after
// a successful StartBatch; used by tests and shutdown.
func (r *Runner) Wait() {
	if ch := r.done.Load(); ch != nil {
		<-*ch
	}
}

func (r *Runner) run(ctx context.Context, batch *types.Batch) {
	batch.Begin()
	if r.metrics != nil {
		r.metrics.BatchStarted()
	}

	syslog.L.Info().
		WithBatch(batch.ID).
		WithMessage("batch started").
		WithField("targets", len(batch.Jobs)).
		WithField("kind", batch.Kind).
		Write()

	for _, job := range batch.Jobs {
		r.runTarget(ctx, batch, job)
	}

	batch.Finish()

	summary := batch.Summary()
	r.presenter.BatchDone(summary)
	if r.metrics != nil {
		r.metrics.BatchFinished(batch)
	}

	syslog.L.Info().
		WithBatch(batch.ID).
		WithMessage("batch finished").
		WithFields(map[string]any{
			"completed": summary.Completed,
			"failed":    summary.Failed,
			"cancelled": summary.Cancelled,
		}).
		Write()
}

// runTarget drives one job to a terminal state. A job's failure never
// propagates: the counters record it and the loop advances, so one bad
// target cannot block the rest of the batch.
func (r *Runner) runTarget(ctx context.Context, batch *types.Batch, job *types.Job) {
	if batch.CancelRequested() {
		r.finishJob(batch, job, types.JobCancelled, "")
		return
	}

	result, err := r.submitWithBackoff(ctx, batch, job)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			r.finishJob(batch, job, types.JobCancelled, "")
		case errors.Is(err, errCancelledBeforeSubmit):
			r.finishJob(batch, job, types.JobCancelled, "")
		case errors.Is(err, errScheduleBudgetSpent):
			r.finishJob(batch, job, types.JobError, "could not schedule")
		default:
			r.finishJob(batch, job, types.JobError, err.Error())
		}
		return
	}

	if result.Disposition == types.SubmitRejected {
		r.finishJob(batch, job, types.JobError, result.Reason)
		return
	}

	if result.ProgressToken == "" {
		// Accepted without a token: the worker offers no tracking for
		// this job. Record it complete rather than failing the target.
		r.finishJob(batch, job, types.JobComplete, "")
		return
	}

	queued := result.Disposition == types.SubmitAcceptedQueued
	batch.SetToken(job, result.ProgressToken, queued)
	if queued {
		r.presenter.JobUpdate(job.Target.ID, types.ProgressUpdate{State: types.JobQueued})
	}

	err = r.poller.Track(ctx, result.ProgressToken, func(u types.ProgressUpdate) {
		if u.State.IsTerminal() {
			return
		}
		batch.ApplyUpdate(job, u)
		r.presenter.JobUpdate(job.Target.ID, types.ProgressUpdate{
			State:     job.State,
			Percent:   job.Percent,
			StepLabel: job.StepLabel,
		})
	})

	switch {
	case err == nil:
		r.finishJob(batch, job, types.JobComplete, "")
	case errors.Is(err, ErrPollTimeout):
		if r.metrics != nil {
			r.metrics.PollTimeout()
		}
		r.finishJob(batch, job, types.JobError, "timed out")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.finishJob(batch, job, types.JobCancelled, "")
	default:
		var remote *RemoteJobError
		if errors.As(err, &remote) {
			r.finishJob(batch, job, types.JobError, remote.Detail)
		} else {
			r.finishJob(batch, job, types.JobError, err.Error())
		}
	}
}

var (
	errScheduleBudgetSpent   = errors.New("scheduling budget spent")
	errCancelledBeforeSubmit = errors.New("cancelled before submission")
)

// submitWithBackoff resubmits the same target on every Conflict at a
// fixed interval until acceptance, rejection, cancellation, or the
// scheduling budget runs out. Queuing is advisory on the worker side
// and race windows are expected, so Conflict here is routine even with
// QueueIfBusy set.
func (r *Runner) submitWithBackoff(ctx context.Context, batch *types.Batch, job *types.Job) (types.SubmitResult, error) {
	deadline := time.Now().Add(r.budget())

	for {
		result, err := r.api.Submit(ctx, job.Target.ID, types.SubmitOptions{
			Kind:        job.Kind,
			SnapshotID:  job.SnapshotID,
			QueueIfBusy: true,
		})
		if err != nil {
			// Only Conflict is retried; a transport failure on
			// submission is terminal for this job since the worker
			// may or may not have created it.
			return types.SubmitResult{}, err
		}

		if result.Disposition != types.SubmitConflict {
			return result, nil
		}

		backoff := r.conflictBackoff()
		if r.metrics != nil {
			r.metrics.ConflictRetry()
		}
		syslog.L.Debug().
			WithBatch(batch.ID).
			WithJob(job.Target.ID).
			WithMessage("submission conflict, backing off").
			WithField("backoff", backoff.String()).
			Write()

		if !time.Now().Add(backoff).Before(deadline) {
			return types.SubmitResult{}, errScheduleBudgetSpent
		}

		select {
		case <-ctx.Done():
			return types.SubmitResult{}, ctx.Err()
		case <-time.After(backoff):
		}

		// No remote job exists yet, so a cancellation arriving during
		// the backoff window still counts as "before submission".
		if batch.CancelRequested() {
			return types.SubmitResult{}, errCancelledBeforeSubmit
		}
	}
}

func (r *Runner) finishJob(batch *types.Batch, job *types.Job, state types.JobState, detail string) {
	batch.SetJobTerminal(job, state, detail)

	r.presenter.JobUpdate(job.Target.ID, types.ProgressUpdate{
		State:       job.State,
		Percent:     job.Percent,
		StepLabel:   job.StepLabel,
		ErrorDetail: job.ErrorDetail,
	})
	if r.metrics != nil {
		r.metrics.JobFinished(job)
	}

	if state == types.JobError {
		syslog.L.Warn().
			WithBatch(batch.ID).
			WithJob(job.Target.ID).
			WithMessage("job failed").
			WithField("detail", detail).
			Write()
	}
}

// BusyError is returned for a single ad-hoc run when the worker is
// already occupied; Holder names the target being worked on.
type BusyError struct {
	Holder string
}

func (e *BusyError) Error() string {
	if e.Holder == "" {
		return "another operation is already in progress"
	}
	return fmt.Sprintf("%s is already being backed up", e.Holder)
}
