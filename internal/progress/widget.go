// Package progress implements the session progress panel: a Bubble Tea
// component that polls summary statistics, runs a local session clock, and
// shows a short-lived correct/incorrect badge driven by learning signals.
//
// All state changes happen inside Update, on the Bubble Tea event loop.
package progress

import (
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/stats"
)

// ResultKind is the outcome shown by the badge.
type ResultKind int

const (
	ResultCorrect ResultKind = iota + 1
	ResultIncorrect
)

func (k ResultKind) String() string {
	switch k {
	case ResultCorrect:
		return "correct"
	case ResultIncorrect:
		return "incorrect"
	}
	return "unknown"
}

// RecentResult is the latest answer outcome, shown until it expires or is
// replaced.
type RecentResult struct {
	Kind       ResultKind
	ObservedAt time.Time
}

// TickFunc schedules fn to produce a message after d. tea.Tick satisfies it.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// Config holds the panel timers.
type Config struct {
	// RefreshInterval between scheduled statistics fetches. Default: 30s.
	RefreshInterval time.Duration
	// ClockInterval between local session-minute increments. Default: 1m.
	ClockInterval time.Duration
	// BadgeDuration is how long a result badge stays visible. Default: 3s.
	BadgeDuration time.Duration
	// FetchTimeout bounds a single statistics request. Default: 10s.
	FetchTimeout time.Duration
	// TopicWidth is the display width the current topic is truncated to.
	TopicWidth int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 30 * time.Second,
		ClockInterval:   time.Minute,
		BadgeDuration:   3 * time.Second,
		FetchTimeout:    10 * time.Second,
		TopicWidth:      24,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.ClockInterval <= 0 {
		c.ClockInterval = d.ClockInterval
	}
	if c.BadgeDuration <= 0 {
		c.BadgeDuration = d.BadgeDuration
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.TopicWidth <= 0 {
		c.TopicWidth = d.TopicWidth
	}
	return c
}

// Options configures a Widget.
type Options struct {
	// Visible is the caller-owned visibility flag at mount time. Later
	// changes go through SetVisible.
	Visible bool

	// OnToggle is returned when the toggle key is pressed. Without it the
	// panel has no collapse affordance and renders nothing while hidden.
	OnToggle tea.Cmd

	Fetcher    stats.Fetcher
	Subscriber notify.Subscriber
	Config     Config
	Logger     *zap.Logger

	// Tick defaults to tea.Tick; Now defaults to time.Now.
	Tick TickFunc
	Now  func() time.Time

	// ToggleKey defaults to "p".
	ToggleKey *key.Binding
}

// Widget is the progress panel.
type Widget struct {
	cfg        Config
	fetcher    stats.Fetcher
	subscriber notify.Subscriber
	logger     *zap.Logger
	tick       TickFunc
	now        func() time.Time
	toggleKey  key.Binding
	onToggle   tea.Cmd

	visible bool
	stats   stats.SessionStats
	result  *RecentResult

	// epoch changes on every activation and deactivation.
	epoch    uint64
	active   bool
	inFlight bool
	queued   bool

	badgeToken uint64

	notifications <-chan notify.Notification
	unsubscribe   func()
	closed        bool
}

// DefaultToggleKey is the binding that fires OnToggle.
func DefaultToggleKey() key.Binding {
	return key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "progress"),
	)
}

// New creates a Widget. Nothing runs until Init.
func New(opts Options) *Widget {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := opts.Tick
	if tick == nil {
		tick = tea.Tick
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	toggleKey := DefaultToggleKey()
	if opts.ToggleKey != nil {
		toggleKey = *opts.ToggleKey
	}
	return &Widget{
		cfg:        opts.Config.withDefaults(),
		fetcher:    opts.Fetcher,
		subscriber: opts.Subscriber,
		logger:     logger.Named("progress"),
		tick:       tick,
		now:        now,
		toggleKey:  toggleKey,
		onToggle:   opts.OnToggle,
		visible:    opts.Visible,
	}
}

// Init mounts the widget: it subscribes to learning signals and, when
// visible, starts the refresh scheduler and session clock.
func (w *Widget) Init() tea.Cmd {
	var cmds []tea.Cmd
	cmds = append(cmds, w.subscribe())
	if w.visible {
		cmds = append(cmds, w.activate())
	}
	return tea.Batch(cmds...)
}

// Close unmounts the widget. Timers stop re-arming, in-flight results are
// discarded, and the signal subscription is cancelled.
func (w *Widget) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.deactivate()
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	w.notifications = nil
}

// SetVisible applies the caller's visibility flag. Becoming visible starts
// the scheduler and clock; becoming hidden stops them.
func (w *Widget) SetVisible(visible bool) tea.Cmd {
	w.visible = visible
	if visible {
		return w.activate()
	}
	w.deactivate()
	return nil
}

// Visible returns the visibility flag last passed in.
func (w *Widget) Visible() bool { return w.visible }

// Active reports whether the scheduler and clock are running.
func (w *Widget) Active() bool { return w.active }

// Stats returns the displayed statistics.
func (w *Widget) Stats() stats.SessionStats { return w.stats }

// Result returns the current badge, or nil when none is showing.
func (w *Widget) Result() *RecentResult {
	if w.result == nil {
		return nil
	}
	r := *w.result
	return &r
}

// ToggleKey returns the binding that fires OnToggle.
func (w *Widget) ToggleKey() key.Binding { return w.toggleKey }

// Update handles widget messages and returns the follow-up command.
func (w *Widget) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case refreshTickMsg:
		return w.handleRefreshTick(msg)

	case clockTickMsg:
		return w.handleClockTick(msg)

	case statsMsg:
		return w.handleStats(msg)

	case badgeExpiredMsg:
		w.handleBadgeExpired(msg)
		return nil

	case subscribedMsg:
		return w.handleSubscribed(msg)

	case notificationMsg:
		return tea.Batch(w.handleNotification(msg.n), w.waitForNotification())

	case subscriptionClosedMsg:
		w.logger.Debug("signal subscription closed")
		w.notifications = nil
		return nil

	case tea.KeyPressMsg:
		if w.onToggle != nil && key.Matches(msg, w.toggleKey) {
			return w.onToggle
		}
	}
	return nil
}

func (w *Widget) activate() tea.Cmd {
	if w.active || w.closed {
		return nil
	}
	w.active = true
	w.epoch++
	w.logger.Debug("panel activated", zap.Uint64("epoch", w.epoch))
	return tea.Batch(
		w.requestRefresh(),
		w.scheduleRefresh(),
		w.scheduleClock(),
	)
}

func (w *Widget) deactivate() {
	if !w.active {
		return
	}
	w.active = false
	w.epoch++
	w.inFlight = false
	w.queued = false
	w.logger.Debug("panel deactivated", zap.Uint64("epoch", w.epoch))
}
