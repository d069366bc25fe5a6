package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/podvault/podvault/internal/store/types"
)

type lockResponse struct {
	Status  string `json:"status"`
	Current string `json:"current,omitempty"`
}

// CheckBusy queries the worker's single-flight lock. It is a
// side-effect-free advisory read: callers use it only to give an
// immediate friendly rejection before a single ad-hoc run, and a probe
// failure is non-fatal because submission conflict handling is the
// authoritative guard.
func (c *Client) CheckBusy(ctx context.Context) (types.LockStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/lock", nil)
	if err != nil {
		return types.LockStatus{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return types.LockStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.LockStatus{}, fmt.Errorf("%w: lock check returned %s", ErrBadResponse, resp.Status)
	}

	var body lockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.LockStatus{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return types.LockStatus{
		Busy:   body.Status == "busy",
		Holder: body.Current,
	}, nil
}
