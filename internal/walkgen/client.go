package walkgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Retry settings for backpressured batches.
const (
	maxRetries     = 8
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

var errBackpressure = errors.New("server applied backpressure")

// client wraps http.Client for the tracker API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type ackResponse struct {
	Status    string `json:"status"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
}

type sessionView struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Snapshot  struct {
		Steps     uint64 `json:"steps"`
		DailyGoal uint64 `json:"daily_goal"`
	} `json:"snapshot"`
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusTooManyRequests {
			return resp.StatusCode, errBackpressure
		}
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

func (c *client) command(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPost, "/session/"+name, nil, nil)
	return err
}

func (c *client) session(ctx context.Context) (sessionView, error) {
	var v sessionView
	_, err := c.do(ctx, http.MethodGet, "/session", nil, &v)
	return v, err
}

// submit posts b, retrying with exponential backoff while the server
// reports backpressure. It returns the ack and the number of retries.
func (c *client) submit(ctx context.Context, b Batch) (ackResponse, int, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		var ack ackResponse
		_, err := c.do(ctx, http.MethodPost, "/samples", b, &ack)
		if err == nil {
			return ack, attempt, nil
		}
		if !errors.Is(err, errBackpressure) || attempt == maxRetries {
			return ack, attempt, err
		}
		select {
		case <-ctx.Done():
			return ack, attempt, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
