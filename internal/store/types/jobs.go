package types

import "time"

type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobComplete  JobState = "complete"
	JobError     JobState = "error"
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether no further transitions occur from s.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobComplete, JobError, JobCancelled:
		return true
	}
	return false
}

// rank orders states along the only legal path:
// waiting -> queued -> running -> terminal.
func (s JobState) rank() int {
	switch s {
	case JobWaiting:
		return 0
	case JobQueued:
		return 1
	case JobRunning:
		return 2
	case JobComplete, JobError, JobCancelled:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether a transition from s to next moves
// forward. Re-entering the current non-terminal state is allowed
// (repeat polls), regressing or leaving a terminal state is not.
func (s JobState) CanAdvanceTo(next JobState) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

type OperationKind string

const (
	KindBackup  OperationKind = "backup"
	KindRestore OperationKind = "restore"
)

// Job is one tracked remote execution of a backup/restore for a single
// Target. Its mutable fields (State, Percent, StepLabel, ErrorDetail,
// timestamps) are written only by the progress poller tracking it.
type Job struct {
	Target        Target        `json:"target"`
	Kind          OperationKind `json:"kind"`
	SnapshotID    string        `json:"snapshot_id,omitempty"`
	ProgressToken string        `json:"progress_token,omitempty"`
	State         JobState      `json:"state"`
	Percent       int           `json:"percent"`
	StepLabel     string        `json:"step_label,omitempty"`
	ErrorDetail   string        `json:"error_detail,omitempty"`
	StartedAt     time.Time     `json:"started_at,omitzero"`
	TerminalAt    time.Time     `json:"terminal_at,omitzero"`
}

// ProgressUpdate is one observation of a job's remote status.
type ProgressUpdate struct {
	State       JobState `json:"state"`
	Percent     int      `json:"percent"`
	StepLabel   string   `json:"step_label,omitempty"`
	ErrorDetail string   `json:"error_detail,omitempty"`
}
