package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswerResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{"correct", `{"isCorrect":true}`, true, false},
		{"incorrect", `{"isCorrect":false}`, false, false},
		{"extra fields", `{"isCorrect":true,"topic":"Algebra"}`, true, false},
		{"string wrapped", `"{\"isCorrect\":true}"`, true, false},
		{"not json", `not json`, false, true},
		{"empty", ``, false, true},
		{"missing flag", `{"topic":"Algebra"}`, false, true},
		{"wrong type", `{"isCorrect":"yes"}`, false, true},
		{"array", `[true]`, false, true},
		{"wrapped garbage", `"nope"`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswerResult(json.RawMessage(tt.raw))
			if tt.wantErr {
				var pErr *PayloadError
				require.True(t, errors.As(err, &pErr), "expected PayloadError, got %v", err)
				assert.Equal(t, SignalAnswerResult, pErr.Signal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.IsCorrect)
		})
	}
}

func TestEncodeAnswerResultRoundTrip(t *testing.T) {
	got, err := ParseAnswerResult(EncodeAnswerResult(true))
	require.NoError(t, err)
	assert.True(t, got.IsCorrect)
}

func TestKnownSignal(t *testing.T) {
	assert.True(t, KnownSignal(SignalAnswerValidated))
	assert.True(t, KnownSignal(SignalAnswerResult))
	assert.False(t, KnownSignal("storage"))
}

func receive(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return Notification{}
}

func TestBusFanOutWithFilter(t *testing.T) {
	bus := NewBus(BusConfig{})

	all, cancelAll, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancelAll()
	results, cancelResults, err := bus.Subscribe(context.Background(), SignalAnswerResult)
	require.NoError(t, err)
	defer cancelResults()

	require.NoError(t, bus.Publish(context.Background(), SignalAnswerValidated, nil))
	require.NoError(t, bus.Publish(context.Background(), SignalAnswerResult, EncodeAnswerResult(false)))

	assert.Equal(t, SignalAnswerValidated, receive(t, all).Name)
	assert.Equal(t, SignalAnswerResult, receive(t, all).Name)

	n := receive(t, results)
	assert.Equal(t, SignalAnswerResult, n.Name)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.SentAt.IsZero())
	select {
	case extra := <-results:
		t.Fatalf("unexpected notification %q", extra.Name)
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(BusConfig{})
	ch, cancel, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers())
	require.NoError(t, bus.Publish(context.Background(), SignalAnswerValidated, nil))
}

func TestBusContextCancel(t *testing.T) {
	bus := NewBus(BusConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(BusConfig{Buffer: 1})
	ch, cancel, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), SignalAnswerValidated, nil))
	require.NoError(t, bus.Publish(context.Background(), SignalAnswerResult, nil))

	assert.Equal(t, SignalAnswerValidated, receive(t, ch).Name)
	select {
	case n := <-ch:
		t.Fatalf("expected drop, got %q", n.Name)
	default:
	}
}

func TestWriteAndReadEvents(t *testing.T) {
	var b strings.Builder
	in := Notification{ID: "n-1", Name: SignalAnswerResult, Payload: EncodeAnswerResult(true), SentAt: time.Unix(10, 0).UTC()}
	require.NoError(t, WriteEvent(&b, in))
	b.WriteString(": keep-alive\n\n")
	b.WriteString("data: not json\n\n")
	require.NoError(t, WriteEvent(&b, Notification{ID: "n-2", Name: SignalAnswerValidated}))

	assert.True(t, strings.HasPrefix(b.String(), "id: n-1\nevent: answerResult\ndata: "))

	var got []Notification
	require.NoError(t, readEvents(strings.NewReader(b.String()), func(n Notification) {
		got = append(got, n)
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "n-1", got[0].ID)
	assert.JSONEq(t, `{"isCorrect":true}`, string(got[0].Payload))
	assert.Equal(t, SignalAnswerValidated, got[1].Name)
}

func TestStreamSubscriber(t *testing.T) {
	queries := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case queries <- r.URL.Query()["name"]:
		default:
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_ = WriteEvent(w, Notification{ID: "a", Name: "other"})
		_ = WriteEvent(w, Notification{ID: "b", Name: SignalAnswerResult, Payload: EncodeAnswerResult(true)})
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	sub := NewStreamSubscriber(StreamConfig{URL: srv.URL, RetryDelay: 10 * time.Millisecond})
	ch, cancel, err := sub.Subscribe(context.Background(), SignalAnswerValidated, SignalAnswerResult)
	require.NoError(t, err)

	n := receive(t, ch)
	assert.Equal(t, "b", n.ID)
	assert.Equal(t, []string{SignalAnswerValidated, SignalAnswerResult}, <-queries)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestStreamSubscriberReconnects(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = WriteEvent(w, Notification{ID: "after-retry", Name: SignalAnswerValidated})
	}))
	defer srv.Close()

	sub := NewStreamSubscriber(StreamConfig{URL: srv.URL, RetryDelay: 5 * time.Millisecond})
	ch, cancel, err := sub.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	assert.Equal(t, "after-retry", receive(t, ch).ID)
}

func TestHTTPPublisher(t *testing.T) {
	type request struct{ path, body string }
	requests := make(chan request, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- request{path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(srv.URL+"/signals/", nil)
	require.NoError(t, pub.Publish(context.Background(), SignalAnswerResult, EncodeAnswerResult(false)))
	got := <-requests
	assert.Equal(t, "/signals/answerResult", got.path)
	assert.JSONEq(t, `{"isCorrect":false}`, got.body)

	require.NoError(t, pub.Publish(context.Background(), SignalAnswerValidated, nil))
	assert.Equal(t, `{}`, (<-requests).body)
}

func TestHTTPPublisherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewHTTPPublisher(srv.URL, nil).Publish(context.Background(), "bogus", nil)
	require.Error(t, err)
}
