package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Masterminds/semver"

	"github.com/podvault/podvault/internal/store/constants"
)

var ErrWorkerTooOld = errors.New("worker version below minimum supported")

type versionResponse struct {
	Version string `json:"version"`
}

// Version reports the worker's advertised API version.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: version read returned %s", ErrBadResponse, resp.Status)
	}

	var body versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return body.Version, nil
}

// CheckVersion refuses workers older than the minimum supported API
// version. Workers that do not advertise a version pass the check; the
// legacy path still works, just without queued submissions.
func (c *Client) CheckVersion(ctx context.Context) error {
	raw, err := c.Version(ctx)
	if err != nil || raw == "" {
		return nil
	}

	current, err := semver.NewVersion(raw)
	if err != nil {
		return nil
	}

	minimum := semver.MustParse(constants.MinWorkerVersion)
	if current.LessThan(minimum) {
		return fmt.Errorf("%w: have %s, need >= %s", ErrWorkerTooOld, current, minimum)
	}

	return nil
}
