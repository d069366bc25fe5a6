package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/podvault/podvault/internal/store/constants"
)

var (
	ErrWorkerUnreachable = errors.New("worker unreachable")
	ErrBadResponse       = errors.New("unexpected worker response")
	ErrUnknownStatus     = errors.New("unknown job status")
	ErrTokenRequired     = errors.New("progress token is required")
)

// Client talks to the remote backup worker API. The worker physically
// produces archives and enforces the system-wide single-flight lock;
// this client only submits jobs and reads state.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: constants.WorkerRequestTimeout,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnreachable, err)
	}
	return resp, nil
}

// errorBody is the worker's generic error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func decodeError(resp *http.Response) string {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return resp.Status
	}
	return body.Error
}
