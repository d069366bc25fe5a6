package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/syslog"
)

// StartSingle runs one ad-hoc operation for a single target. Unlike a
// batch it never queues behind the running job: the lock is probed
// first so the user gets an immediate "X is already being backed up"
// answer, and a submission conflict surfaces as the same busy error
// instead of being retried.
//
// The probe is advisory; if it is unreachable the submission proceeds
// anyway, since the worker's own conflict handling is the
// authoritative guard.
func (r *Runner) StartSingle(ctx context.Context, target types.Target, kind types.OperationKind, snapshotID string) (*types.Batch, error) {
	var snapshots map[string]string
	if snapshotID != "" {
		snapshots = map[string]string{target.ID: snapshotID}
	}

	batch := types.NewBatch("single-"+uuid.NewString(), kind, []types.Target{target}, snapshots)

	if !r.active.CompareAndSwap(nil, batch) {
		return nil, ErrBatchInProgress
	}

	release := func() { r.active.Store(nil) }

	lock, err := r.api.CheckBusy(ctx)
	if err != nil {
		syslog.L.Warn().
			WithMessage("lock probe failed, proceeding with submission").
			WithField("cause", err.Error()).
			Write()
	} else if lock.Busy {
		release()
		return nil, &BusyError{Holder: lock.Holder}
	}

	result, err := r.api.Submit(ctx, target.ID, types.SubmitOptions{
		Kind:        kind,
		SnapshotID:  snapshotID,
		QueueIfBusy: false,
	})
	if err != nil {
		release()
		return nil, err
	}

	switch result.Disposition {
	case types.SubmitConflict:
		release()
		return nil, &BusyError{}
	case types.SubmitRejected:
		release()
		return nil, fmt.Errorf("submission rejected: %s", result.Reason)
	}

	batch.Begin()
	job := batch.Jobs[0]
	batch.SetToken(job, result.ProgressToken, result.Disposition == types.SubmitAcceptedQueued)

	if result.ProgressToken == "" {
		// Accepted without a token: nothing to poll. Record the run
		// complete immediately.
		r.finishJob(batch, job, types.JobComplete, "")
		batch.Finish()
		r.presenter.BatchDone(batch.Summary())
		if r.metrics != nil {
			r.metrics.BatchFinished(batch)
		}
		release()
		return batch, nil
	}

	done := make(chan struct{})
	r.done.Store(&done)

	go func() {
		defer close(done)
		defer release()

		err := r.poller.Track(ctx, result.ProgressToken, func(u types.ProgressUpdate) {
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

		batch.Finish()
		r.presenter.BatchDone(batch.Summary())
		if r.metrics != nil {
			r.metrics.BatchFinished(batch)
		}
	}()

	return batch, nil
}
