// Package stats fetches learning-session summary statistics from the
// statistics endpoint.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// SessionStats is the panel's view of the current learning session.
type SessionStats struct {
	SessionMinutes  int
	TopicsCompleted int
	CurrentTopic    string
}

// Summary is the wire shape of the statistics endpoint. Every field is
// optional; nil means the endpoint did not send it.
type Summary struct {
	SessionDuration *int    `json:"session_duration,omitempty"`
	CompletedTopics *int    `json:"completed_topics,omitempty"`
	LastTopic       *string `json:"last_topic,omitempty"`

	// Error is set by the endpoint when it cannot produce statistics; such a
	// response is a failure even with a 200 status.
	Error string `json:"error,omitempty"`
}

// Apply overwrites the fields present in s and keeps the rest of prev.
// Negative counters from the endpoint are clamped to zero.
func (s Summary) Apply(prev SessionStats) SessionStats {
	next := prev
	if s.SessionDuration != nil {
		next.SessionMinutes = max(*s.SessionDuration, 0)
	}
	if s.CompletedTopics != nil {
		next.TopicsCompleted = max(*s.CompletedTopics, 0)
	}
	if s.LastTopic != nil {
		next.CurrentTopic = *s.LastTopic
	}
	return next
}

// Fetcher retrieves the current summary.
type Fetcher interface {
	FetchSummary(ctx context.Context) (Summary, error)
}

// NetworkError indicates the request failed in transport or the endpoint
// answered with a non-2xx status. StatusCode is 0 for transport failures.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stats endpoint returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stats endpoint unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrUnavailable is returned when the endpoint reports that statistics are
// unavailable in the response body.
var ErrUnavailable = errors.New("statistics unavailable")

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

// Client is an HTTP Fetcher for a fixed endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client for endpoint. A nil httpClient uses
// http.DefaultClient; per-request deadlines come from the caller's context.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// FetchSummary issues GET endpoint and decodes the JSON body.
func (c *Client) FetchSummary(ctx context.Context) (Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Summary{}, &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Summary{}, &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", http.StatusText(resp.StatusCode))}
	}

	var s Summary
	if err := json.Unmarshal(body, &s); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	if s.Error != "" {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnavailable, s.Error)
	}
	return s, nil
}
