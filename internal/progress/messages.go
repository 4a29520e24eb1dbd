package progress

import (
	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/stats"
)

// Timer and fetch messages carry the activation epoch they were issued
// under. A message whose epoch no longer matches is stale and dropped.

type refreshTickMsg struct{ epoch uint64 }

type clockTickMsg struct{ epoch uint64 }

type statsMsg struct {
	epoch   uint64
	summary stats.Summary
	err     error
}

// badgeExpiredMsg clears the badge only if token is still the latest.
type badgeExpiredMsg struct{ token uint64 }

type subscribedMsg struct {
	ch     <-chan notify.Notification
	cancel func()
	err    error
}

type notificationMsg struct{ n notify.Notification }

type subscriptionClosedMsg struct{}
