package batches

import "github.com/podvault/podvault/internal/store/types"

type startBatchRequest struct {
	Kind    string       `json:"kind"`
	Targets []targetSpec `json:"targets"`
}

type targetSpec struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
}

type startBatchResponse struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Data    types.BatchView `json:"data"`
}

type batchListResponse struct {
	Status int               `json:"status"`
	Data   []types.BatchView `json:"data"`
}

type runSingleRequest struct {
	Target     targetSpec `json:"target"`
	Kind       string     `json:"kind"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
}
