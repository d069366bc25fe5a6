package orchestrator

import "github.com/podvault/podvault/internal/store/types"

// Presenter is the rendering surface the engine reports into. It is
// invoked on every job state change and once per batch on completion.
// Implementations must not block; slow consumers drop updates, they do
// not stall the control loop.
type Presenter interface {
	JobUpdate(targetID string, update types.ProgressUpdate)
	BatchDone(summary types.BatchSummary)
}

type nopPresenter struct{}

func (nopPresenter) JobUpdate(string, types.ProgressUpdate) {}
func (nopPresenter) BatchDone(types.BatchSummary)           {}

// NopPresenter discards all updates.
var NopPresenter Presenter = nopPresenter{}
