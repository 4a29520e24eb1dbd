// Package notify carries named learning signals between the process that
// validates answers and every panel that displays them.
//
// The panel depends only on Subscriber; Bus keeps signals in-process while
// StreamSubscriber and HTTPPublisher carry them over the statistics service.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Signal names.
const (
	// SignalAnswerValidated announces that an answer was checked; listeners
	// refresh their statistics. Its payload is ignored.
	SignalAnswerValidated = "answerValidated"

	// SignalAnswerResult carries {"isCorrect": bool}.
	SignalAnswerResult = "answerResult"
)

// KnownSignal reports whether name is one of the signal names above.
func KnownSignal(name string) bool {
	return name == SignalAnswerValidated || name == SignalAnswerResult
}

// Notification is one delivered signal.
type Notification struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Subscriber delivers notifications for the given names. The returned channel
// is closed after cancel is called or ctx is done. cancel is idempotent.
type Subscriber interface {
	Subscribe(ctx context.Context, names ...string) (<-chan Notification, func(), error)
}

// Publisher broadcasts a signal to every current subscriber.
type Publisher interface {
	Publish(ctx context.Context, name string, payload json.RawMessage) error
}

func nameSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// matches reports whether name passes the filter; a nil filter passes all.
func matches(filter map[string]bool, name string) bool {
	return filter == nil || filter[name]
}
