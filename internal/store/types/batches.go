package types

import (
	"sync"
	"sync/atomic"
	"time"
)

type BatchState string

const (
	BatchIdle             BatchState = "idle"
	BatchRunning          BatchState = "running"
	BatchCompleted        BatchState = "completed"
	BatchCancelledPartial BatchState = "cancelled-partial"
)

func (s BatchState) IsTerminal() bool {
	return s == BatchCompleted || s == BatchCancelledPartial
}

// BatchSummary is the batch-level result pushed to the presentation
// surface once every job has reached a terminal state.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled bool   `json:"cancelled"`
}

// Batch is an ordered sequence of jobs created from a submitted target
// list. Jobs are processed strictly in submission order; at most one is
// ever running at a time. The runner and its pollers are the only
// writers; the mutex exists so API handlers can take consistent
// snapshots while a batch runs.
type Batch struct {
	mu sync.RWMutex

	ID        string
	Kind      OperationKind
	Jobs      []*Job
	State     BatchState
	StartedAt time.Time
	EndedAt   time.Time

	CompletedCount int
	FailedCount    int
	CancelledCount int

	cancelRequested atomic.Bool
}

// NewBatch builds an idle batch with one waiting job per target, in the
// order received. snapshotIDs is consulted per target for restores and
// may be nil for backups.
func NewBatch(id string, kind OperationKind, targets []Target, snapshotIDs map[string]string) *Batch {
	jobs := make([]*Job, 0, len(targets))
	for _, t := range targets {
		jobs = append(jobs, &Job{
			Target:     t,
			Kind:       kind,
			SnapshotID: snapshotIDs[t.ID],
			State:      JobWaiting,
		})
	}

	return &Batch{
		ID:    id,
		Kind:  kind,
		Jobs:  jobs,
		State: BatchIdle,
	}
}

// RequestCancel sets the cancellation flag. Cancellation is cooperative
// and non-preemptive: the runner stops starting new jobs but a job
// already handed to a poller runs to its natural terminal state.
func (b *Batch) RequestCancel() {
	b.cancelRequested.Store(true)
}

func (b *Batch) CancelRequested() bool {
	return b.cancelRequested.Load()
}

// Begin moves the batch from idle to running.
func (b *Batch) Begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.State = BatchRunning
	b.StartedAt = time.Now()
}

// Finish moves the batch to its terminal state. It must be called once
// every job is terminal.
func (b *Batch) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelRequested.Load() {
		b.State = BatchCancelledPartial
	} else {
		b.State = BatchCompleted
	}
	b.EndedAt = time.Now()
}

// ApplyUpdate writes a non-terminal progress observation to job.
// Regressions are dropped and percent is clamped monotone, so the
// externally visible sequence always moves forward.
func (b *Batch) ApplyUpdate(job *Job, u ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !job.State.CanAdvanceTo(u.State) {
		return
	}

	if job.StartedAt.IsZero() && u.State == JobRunning {
		job.StartedAt = time.Now()
	}

	job.State = u.State
	if u.Percent > job.Percent {
		job.Percent = u.Percent
	}
	if u.StepLabel != "" {
		job.StepLabel = u.StepLabel
	}
}

// SetJobTerminal finalizes one job and bumps the matching counter.
func (b *Batch) SetJobTerminal(job *Job, state JobState, errorDetail string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if job.State.IsTerminal() {
		return
	}

	job.State = state
	job.ErrorDetail = errorDetail
	job.TerminalAt = time.Now()

	switch state {
	case JobComplete:
		job.Percent = 100
		b.CompletedCount++
	case JobError:
		b.FailedCount++
	case JobCancelled:
		b.CancelledCount++
	}
}

// SetToken records the worker-issued progress token for job.
func (b *Batch) SetToken(job *Job, token string, queued bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job.ProgressToken = token
	if queued && job.State.CanAdvanceTo(JobQueued) {
		job.State = JobQueued
	}
}

// Summary returns the batch-level aggregate for reporting.
func (b *Batch) Summary() BatchSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BatchSummary{
		BatchID:   b.ID,
		Completed: b.CompletedCount,
		Failed:    b.FailedCount,
		Cancelled: b.cancelRequested.Load(),
	}
}

// BatchView is a consistent copy of batch state for API responses.
type BatchView struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	State     BatchState    `json:"state"`
	Jobs      []Job         `json:"jobs"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
}

func (b *Batch) Snapshot() BatchView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	jobs := make([]Job, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		jobs = append(jobs, *j)
	}

	return BatchView{
		ID:        b.ID,
		Kind:      b.Kind,
		State:     b.State,
		Jobs:      jobs,
		Completed: b.CompletedCount,
		Failed:    b.FailedCount,
		Cancelled: b.CancelledCount,
		StartedAt: b.StartedAt,
		EndedAt:   b.EndedAt,
	}
}

// Terminal reports whether every job has reached a terminal state.
func (b *Batch) Terminal() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, j := range b.Jobs {
		if !j.State.IsTerminal() {
			return false
		}
	}
	return true
}
