package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/podvault/podvault/internal/store/types"
)

type targetEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListTargets fetches the backupable resource inventory from the
// worker.
func (c *Client) ListTargets(ctx context.Context) ([]types.Target, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/targets", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: target list returned %s", ErrBadResponse, resp.Status)
	}

	var entries []targetEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	targets := make([]types.Target, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		targets = append(targets, types.Target{ID: e.ID, DisplayName: name})
	}

	return targets, nil
}
