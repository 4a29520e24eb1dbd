package progress

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/notify"
)

var listenedSignals = []string{notify.SignalAnswerValidated, notify.SignalAnswerResult}

func (w *Widget) subscribe() tea.Cmd {
	if w.subscriber == nil {
		return nil
	}
	sub := w.subscriber
	return func() tea.Msg {
		ch, cancel, err := sub.Subscribe(context.Background(), listenedSignals...)
		return subscribedMsg{ch: ch, cancel: cancel, err: err}
	}
}

func (w *Widget) handleSubscribed(msg subscribedMsg) tea.Cmd {
	if msg.err != nil {
		w.logger.Warn("subscribe to learning signals failed", zap.Error(msg.err))
		return nil
	}
	if w.closed {
		// Unmounted while subscribing.
		if msg.cancel != nil {
			msg.cancel()
		}
		return nil
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	w.notifications = msg.ch
	w.unsubscribe = msg.cancel
	return w.waitForNotification()
}

// waitForNotification blocks, off the event loop, for the next signal.
func (w *Widget) waitForNotification() tea.Cmd {
	ch := w.notifications
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return notificationMsg{n: n}
	}
}

func (w *Widget) handleNotification(n notify.Notification) tea.Cmd {
	if w.closed {
		return nil
	}
	switch n.Name {
	case notify.SignalAnswerValidated:
		if !w.active {
			w.logger.Debug("answer validated while hidden; refresh deferred to activation")
			return nil
		}
		return w.requestRefresh()

	case notify.SignalAnswerResult:
		res, err := notify.ParseAnswerResult(n.Payload)
		if err != nil {
			w.logger.Warn("ignoring answer result", zap.String("id", n.ID), zap.Error(err))
			return nil
		}
		return w.showResult(res.IsCorrect)
	}
	return nil
}

// showResult replaces the badge and schedules its expiry. Expiry messages
// from earlier badges carry an older token and are ignored.
func (w *Widget) showResult(correct bool) tea.Cmd {
	kind := ResultIncorrect
	if correct {
		kind = ResultCorrect
	}
	w.badgeToken++
	token := w.badgeToken
	w.result = &RecentResult{Kind: kind, ObservedAt: w.now()}
	return w.tick(w.cfg.BadgeDuration, func(time.Time) tea.Msg {
		return badgeExpiredMsg{token: token}
	})
}

func (w *Widget) handleBadgeExpired(msg badgeExpiredMsg) {
	if msg.token != w.badgeToken {
		return
	}
	w.result = nil
}
