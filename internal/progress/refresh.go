package progress

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"
)

// requestRefresh is the single entry point for the refresh timer and for
// answerValidated. At most one fetch is outstanding; requests that arrive
// while one is in flight collapse into a single follow-up fetch.
func (w *Widget) requestRefresh() tea.Cmd {
	if !w.active || w.fetcher == nil {
		return nil
	}
	if w.inFlight {
		w.queued = true
		return nil
	}
	w.inFlight = true
	return w.fetch(w.epoch)
}

func (w *Widget) fetch(epoch uint64) tea.Cmd {
	fetcher := w.fetcher
	timeout := w.cfg.FetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		summary, err := fetcher.FetchSummary(ctx)
		return statsMsg{epoch: epoch, summary: summary, err: err}
	}
}

func (w *Widget) handleStats(msg statsMsg) tea.Cmd {
	if !w.active || msg.epoch != w.epoch {
		w.logger.Debug("discarding stats from previous activation",
			zap.Uint64("epoch", msg.epoch),
			zap.Uint64("current_epoch", w.epoch),
		)
		return nil
	}
	w.inFlight = false

	if msg.err != nil {
		w.logger.Warn("fetch summary statistics failed", zap.Error(msg.err))
	} else {
		w.stats = msg.summary.Apply(w.stats)
	}

	if w.queued {
		w.queued = false
		return w.requestRefresh()
	}
	return nil
}

func (w *Widget) scheduleRefresh() tea.Cmd {
	epoch := w.epoch
	return w.tick(w.cfg.RefreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{epoch: epoch}
	})
}

func (w *Widget) handleRefreshTick(msg refreshTickMsg) tea.Cmd {
	if !w.active || msg.epoch != w.epoch {
		return nil
	}
	return tea.Batch(w.requestRefresh(), w.scheduleRefresh())
}

func (w *Widget) scheduleClock() tea.Cmd {
	epoch := w.epoch
	return w.tick(w.cfg.ClockInterval, func(time.Time) tea.Msg {
		return clockTickMsg{epoch: epoch}
	})
}

// handleClockTick advances the local session clock by one minute. A later
// refresh overwrites it with the endpoint's value.
func (w *Widget) handleClockTick(msg clockTickMsg) tea.Cmd {
	if !w.active || msg.epoch != w.epoch {
		return nil
	}
	w.stats.SessionMinutes++
	return w.scheduleClock()
}
