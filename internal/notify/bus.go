package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 16

// BusConfig controls buffering for a Bus.
//   - Buffer: per-subscriber channel size (default 16).
//   - Now: clock used to stamp notifications (default time.Now).
//   - Logger: optional structured logger used for drop warnings.
type BusConfig struct {
	Buffer int
	Now    func() time.Time
	Logger *zap.Logger
}

// Bus fans notifications out to in-process subscribers. Publish never blocks;
// a subscriber whose buffer is full misses the notification.
type Bus struct {
	cfg    BusConfig
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	filter map[string]bool
	ch     chan Notification
}

var (
	_ Subscriber = (*Bus)(nil)
	_ Publisher  = (*Bus)(nil)
)

// NewBus creates an empty Bus.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultSubscriberBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[uint64]*subscription),
	}
}

// Subscribe registers a subscriber for names (all names when empty).
func (b *Bus) Subscribe(ctx context.Context, names ...string) (<-chan Notification, func(), error) {
	sub := &subscription{
		filter: nameSet(names),
		ch:     make(chan Notification, b.cfg.Buffer),
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			b.mu.Lock()
			delete(b.subs, id)
			close(sub.ch)
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return sub.ch, cancel, nil
}

// Publish delivers a notification to every subscriber whose filter matches.
func (b *Bus) Publish(_ context.Context, name string, payload json.RawMessage) error {
	b.Deliver(Notification{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		SentAt:  b.cfg.Now(),
	})
	return nil
}

// Deliver fans out an already-stamped notification.
func (b *Bus) Deliver(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !matches(sub.filter, n.Name) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			b.logger.Warn("notification dropped: subscriber buffer full",
				zap.String("signal", n.Name),
				zap.String("id", n.ID),
			)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
