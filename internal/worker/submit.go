package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/podvault/podvault/internal/store/types"
)

type submitRequest struct {
	TargetID    string `json:"targetId"`
	Kind        string `json:"kind"`
	SnapshotID  string `json:"snapshotId,omitempty"`
	QueueIfBusy bool   `json:"queueIfBusy"`
}

type submitResponse struct {
	Status        string `json:"status,omitempty"`
	ProgressToken string `json:"progressToken"`
}

// Submit asks the worker to start (or enqueue) one job for a target.
// Exactly one remote job is created for an Accepted/AcceptedQueued
// result; Conflict and Rejected create none. The progress token may be
// empty when the worker offers no tracking for the job.
func (c *Client) Submit(ctx context.Context, targetID string, opts types.SubmitOptions) (types.SubmitResult, error) {
	kind := opts.Kind
	if kind == "" {
		kind = types.KindBackup
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/jobs", submitRequest{
		TargetID:    targetID,
		Kind:        string(kind),
		SnapshotID:  opts.SnapshotID,
		QueueIfBusy: opts.QueueIfBusy,
	})
	if err != nil {
		return types.SubmitResult{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return types.SubmitResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		var body submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return types.SubmitResult{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}

		disposition := types.SubmitAccepted
		if resp.StatusCode == http.StatusAccepted || body.Status == "queued" {
			disposition = types.SubmitAcceptedQueued
		}

		return types.SubmitResult{
			Disposition:   disposition,
			ProgressToken: body.ProgressToken,
		}, nil

	case resp.StatusCode == http.StatusConflict:
		return types.SubmitResult{Disposition: types.SubmitConflict}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.SubmitResult{
			Disposition: types.SubmitRejected,
			Reason:      decodeError(resp),
		}, nil

	default:
		return types.SubmitResult{}, fmt.Errorf("%w: submission returned %s", ErrBadResponse, resp.Status)
	}
}
