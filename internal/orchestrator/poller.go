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
	"github.com/podvault/podvault/internal/utils/safemap"
)

var (
	ErrPollTimeout  = errors.New("timed out")
	ErrTrackedTwice = errors.New("token is already being tracked")
)

// RemoteJobError carries the worker-reported failure detail of a job
// that ended in the error state.
type RemoteJobError struct {
	Detail string
}

func (e *RemoteJobError) Error() string {
	if e.Detail == "" {
		return "job failed"
	}
	return e.Detail
}

// StatusReader is the slice of the worker API the poller needs.
type StatusReader interface {
	Status(ctx context.Context, progressToken string) (types.ProgressUpdate, error)
}

// Poller drives the bounded polling loop for one submitted job at a
// time. The worker exposes pull-only status, so progress is a poll
// stream, not a subscription.
type Poller struct {
	api      StatusReader
	interval atomic.Int64
	timeout  atomic.Int64

	tracked *safemap.Map[string, struct{}]
}

func NewPoller(api StatusReader, interval, timeout time.Duration) *Poller {
	p := &Poller{
		api:     api,
		tracked: safemap.New[string, struct{}](),
	}
	p.SetCadence(interval, timeout)
	if p.interval.Load() == 0 {
		p.interval.Store(int64(constants.PollInterval))
	}
	if p.timeout.Load() == 0 {
		p.timeout.Store(int64(constants.JobTimeout))
	}

	return p
}

// SetCadence updates the poll interval and wall-clock budget, typically
// after a config reload. Jobs already being tracked keep the cadence
// they started with.
func (p *Poller) SetCadence(interval, timeout time.Duration) {
	if interval > 0 {
		p.interval.Store(int64(interval))
	}
	if timeout > 0 {
		p.timeout.Store(int64(timeout))
	}
}

// Track polls progressToken until it reaches a terminal state, calling
// onUpdate for every observation including the terminal one. It
// returns nil for a completed job, a *RemoteJobError for a failed one,
// ErrPollTimeout once the wall-clock budget is spent regardless of
// remote state, and ctx.Err() on cancellation.
//
// A transient read failure does not fail the job; the worker may be
// briefly unreachable while still working, so the loop just keeps
// polling until the budget runs out.
func (p *Poller) Track(ctx context.Context, progressToken string, onUpdate func(types.ProgressUpdate)) error {
	if progressToken == "" {
		return fmt.Errorf("track: empty progress token")
	}

	if _, loaded := p.tracked.GetOrSet(progressToken, struct{}{}); loaded {
		return ErrTrackedTwice
	}
	defer p.tracked.Del(progressToken)

	deadline := time.NewTimer(time.Duration(p.timeout.Load()))
	defer deadline.Stop()

	ticker := time.NewTicker(time.Duration(p.interval.Load()))
	defer ticker.Stop()

	for {
		update, err := p.api.Status(ctx, progressToken)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			syslog.L.Debug().
				WithMessage("transient status read failure, continuing").
				WithField("token", progressToken).
				WithField("cause", err.Error()).
				Write()
		} else {
			onUpdate(update)

			switch update.State {
			case types.JobComplete:
				return nil
			case types.JobError:
				return &RemoteJobError{Detail: update.ErrorDetail}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}
