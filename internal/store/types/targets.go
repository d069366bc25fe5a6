package types

// Target identifies one resource eligible for a backup or restore
// operation. The ID is opaque and stable; DisplayName is what the UI
// shows. Targets are immutable for the lifetime of a batch.
type Target struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// LockStatus is the advisory state of the worker's single-flight lock.
// The engine only ever observes it; it never acquires or releases it.
type LockStatus struct {
	Busy   bool   `json:"busy"`
	Holder string `json:"holder,omitempty"`
}
