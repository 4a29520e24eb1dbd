package notify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRetryDelay = 2 * time.Second

// WriteEvent writes n as one Server-Sent Events frame.
func WriteEvent(w io.Writer, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	var b bytes.Buffer
	if n.ID != "" {
		b.WriteString("id: ")
		b.WriteString(n.ID)
		b.WriteString("\n")
	}
	b.WriteString("event: ")
	b.WriteString(n.Name)
	b.WriteString("\ndata: ")
	b.Write(data)
	b.WriteString("\n\n")
	_, err = w.Write(b.Bytes())
	return err
}

// readEvents parses SSE frames from r and calls fn with each decoded
// notification. Frames whose data is not a JSON notification are skipped.
func readEvents(r io.Reader, fn func(Notification)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(dataLines) == 0 {
				continue
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = dataLines[:0]
			var n Notification
			if err := json.Unmarshal([]byte(payload), &n); err == nil && n.Name != "" {
				fn(n)
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	return scanner.Err()
}

// StreamConfig configures a StreamSubscriber.
type StreamConfig struct {
	// URL of the SSE endpoint, e.g. http://localhost:8000/signals.
	URL string
	// HTTPClient defaults to a client without a timeout; streams are long-lived.
	HTTPClient *http.Client
	// RetryDelay between reconnect attempts. Default 2s.
	RetryDelay time.Duration
	// Buffer is the delivery channel size. Default 16.
	Buffer int
	Logger *zap.Logger
}

// StreamSubscriber receives notifications from the statistics service's
// /signals stream and reconnects until cancelled.
type StreamSubscriber struct {
	cfg    StreamConfig
	logger *zap.Logger
}

var _ Subscriber = (*StreamSubscriber)(nil)

// NewStreamSubscriber creates a StreamSubscriber.
func NewStreamSubscriber(cfg StreamConfig) *StreamSubscriber {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultSubscriberBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamSubscriber{cfg: cfg, logger: logger}
}

// Subscribe starts streaming in the background. Connection failures are
// logged and retried; they never fail the subscription.
func (s *StreamSubscriber) Subscribe(ctx context.Context, names ...string) (<-chan Notification, func(), error) {
	target, err := s.streamURL(names)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancelCtx := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() { once.Do(cancelCtx) }

	filter := nameSet(names)
	ch := make(chan Notification, s.cfg.Buffer)

	go func() {
		defer close(ch)
		for {
			err := s.stream(ctx, target, func(n Notification) {
				if !matches(filter, n.Name) {
					return
				}
				select {
				case ch <- n:
				case <-ctx.Done():
				}
			})
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("signal stream disconnected",
				zap.String("url", target),
				zap.Error(err),
				zap.Duration("retry_in", s.cfg.RetryDelay),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}()

	return ch, cancel, nil
}

func (s *StreamSubscriber) streamURL(names []string) (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if len(names) > 0 {
		q := u.Query()
		for _, n := range names {
			q.Add("name", n)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *StreamSubscriber) stream(ctx context.Context, target string, fn func(Notification)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("signal stream returned %d", resp.StatusCode)
	}
	s.logger.Debug("signal stream connected", zap.String("url", target))

	if err := readEvents(resp.Body, fn); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return io.EOF
}

// HTTPPublisher posts signals to the statistics service at URL/{name}.
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
}

var _ Publisher = (*HTTPPublisher)(nil)

// NewHTTPPublisher creates a publisher for the signals base URL.
func NewHTTPPublisher(baseURL string, httpClient *http.Client) *HTTPPublisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPublisher{url: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Publish posts payload (or an empty object) as the signal body.
func (p *HTTPPublisher) Publish(ctx context.Context, name string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/"+url.PathEscape(name), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish %s: server returned %d", name, resp.StatusCode)
	}
	return nil
}
