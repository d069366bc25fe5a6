package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/podvault/podvault/internal/store/types"
)

type statusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Step     string `json:"step,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status reads the current state of a submitted job by its opaque
// progress token. The worker exposes pull-only status, so callers poll.
func (c *Client) Status(ctx context.Context, progressToken string) (types.ProgressUpdate, error) {
	if progressToken == "" {
		return types.ProgressUpdate{}, ErrTokenRequired
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(progressToken), nil)
	if err != nil {
		return types.ProgressUpdate{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return types.ProgressUpdate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ProgressUpdate{}, fmt.Errorf("%w: status read returned %s", ErrBadResponse, resp.Status)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.ProgressUpdate{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	state, err := mapStatus(body.Status)
	if err != nil {
		return types.ProgressUpdate{}, err
	}

	return types.ProgressUpdate{
		State:       state,
		Percent:     clampPercent(body.Progress),
		StepLabel:   body.Step,
		ErrorDetail: body.Error,
	}, nil
}

// mapStatus translates the worker's wire status into a job state. An
// unrecognized status is reported as an error so the poll loop treats
// it like any other transient read failure.
func mapStatus(status string) (types.JobState, error) {
	switch status {
	case "waiting":
		return types.JobWaiting, nil
	case "queued":
		return types.JobQueued, nil
	case "running":
		return types.JobRunning, nil
	case "complete":
		return types.JobComplete, nil
	case "error":
		return types.JobError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, status)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
