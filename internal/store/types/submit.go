package types

type SubmitDisposition int

const (
	// SubmitAccepted means the worker began the job immediately.
	SubmitAccepted SubmitDisposition = iota
	// SubmitAcceptedQueued means the worker accepted the job but placed
	// it behind the currently running one; the same token is polled.
	SubmitAcceptedQueued
	// SubmitConflict means the single-flight lock is held and the job
	// was not enqueued. No remote job was created.
	SubmitConflict
	// SubmitRejected is a permanent failure (validation, not-found).
	SubmitRejected
)

// SubmitResult is the worker's immediate answer to a job submission.
// ProgressToken is set only for Accepted/AcceptedQueued; Reason only
// for Rejected.
type SubmitResult struct {
	Disposition   SubmitDisposition
	ProgressToken string
	Reason        string
}

// SubmitOptions controls a single submission. QueueIfBusy is true for
// batch operations; ad-hoc single runs leave it false so the caller
// gets an immediate busy error instead of silently waiting.
type SubmitOptions struct {
	Kind        OperationKind
	SnapshotID  string
	QueueIfBusy bool
}
