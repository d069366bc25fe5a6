package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podvault/podvault/internal/store/types"
)

type statusFunc func(ctx context.Context, token string) (types.ProgressUpdate, error)

func (f statusFunc) Status(ctx context.Context, token string) (types.ProgressUpdate, error) {
	return f(ctx, token)
}

func TestTrackCompletes(t *testing.T) {
	script := []statusStep{running(25), running(75), complete()}
	var calls int
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		step := script[min(calls, len(script)-1)]
		calls++
		return step.update, step.err
	})

	var seen []types.ProgressUpdate
	p := NewPoller(reader, time.Millisecond, time.Second)
	err := p.Track(context.Background(), "tok", func(u types.ProgressUpdate) {
		seen = append(seen, u)
	})

	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, types.JobComplete, seen[2].State)
}

func TestTrackToleratesTransientFailures(t *testing.T) {
	var calls int
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		calls++
		if calls <= 2 {
			return types.ProgressUpdate{}, errors.New("connection refused")
		}
		return types.ProgressUpdate{State: types.JobComplete, Percent: 100}, nil
	})

	p := NewPoller(reader, time.Millisecond, time.Second)
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTrackRemoteError(t *testing.T) {
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		return types.ProgressUpdate{State: types.JobError, ErrorDetail: "disk full"}, nil
	})

	p := NewPoller(reader, time.Millisecond, time.Second)
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})

	var remote *RemoteJobError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "disk full", remote.Detail)
}

func TestTrackTimeout(t *testing.T) {
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		return types.ProgressUpdate{State: types.JobRunning, Percent: 50}, nil
	})

	p := NewPoller(reader, time.Millisecond, 20*time.Millisecond)

	start := time.Now()
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTrackTimeoutWinsOverUnreachableWorker(t *testing.T) {
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		return types.ProgressUpdate{}, errors.New("connection refused")
	})

	p := NewPoller(reader, time.Millisecond, 20*time.Millisecond)
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	require.ErrorIs(t, err, ErrPollTimeout)
}

func TestTrackCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		once.Do(cancel)
		return types.ProgressUpdate{State: types.JobRunning}, nil
	})

	p := NewPoller(reader, time.Millisecond, time.Second)
	err := p.Track(ctx, "tok", func(types.ProgressUpdate) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTrackRejectsDuplicateToken(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return types.ProgressUpdate{State: types.JobComplete, Percent: 100}, nil
		default:
			return types.ProgressUpdate{State: types.JobRunning}, nil
		}
	})

	p := NewPoller(reader, time.Millisecond, time.Second)

	done := make(chan error, 1)
	go func() {
		done <- p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	}()

	<-started
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	require.ErrorIs(t, err, ErrTrackedTwice)

	close(release)
	require.NoError(t, <-done)

	// Once the first tracker finishes, the token may be tracked again.
	err = p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	require.NoError(t, err)
}

func TestSetCadenceAppliesToNextTrack(t *testing.T) {
	reader := statusFunc(func(ctx context.Context, token string) (types.ProgressUpdate, error) {
		return types.ProgressUpdate{State: types.JobRunning, Percent: 10}, nil
	})

	p := NewPoller(reader, time.Hour, time.Hour)
	p.SetCadence(time.Millisecond, 20*time.Millisecond)

	start := time.Now()
	err := p.Track(context.Background(), "tok", func(types.ProgressUpdate) {})
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestTrackEmptyToken(t *testing.T) {
	p := NewPoller(statusFunc(nil), time.Millisecond, time.Second)
	err := p.Track(context.Background(), "", func(types.ProgressUpdate) {})
	require.Error(t, err)
}
