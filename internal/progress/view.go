package progress

import (
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"github.com/abhisek/tutorbar/internal/ui/theme"
)

// FormatMinutes renders a session length as "Nm" under an hour and
// "Xh Ym" otherwise.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatTopics renders the completed-topics count.
func FormatTopics(n int) string {
	if n == 1 {
		return "1 topic"
	}
	return fmt.Sprintf("%d topics", n)
}

// TruncateTopic shortens label to at most width terminal cells.
func TruncateTopic(label string, width int) string {
	return runewidth.Truncate(label, width, "…")
}

// View renders the panel. It is a pure function of the visibility flag, the
// presence of OnToggle, and the displayed state.
func (w *Widget) View() string {
	if !w.visible {
		if w.onToggle == nil {
			return ""
		}
		return w.renderCollapsed()
	}
	return w.renderExpanded()
}

func (w *Widget) renderCollapsed() string {
	help := w.toggleKey.Help()
	return theme.PanelCollapsed.Render(fmt.Sprintf("▸ Progress [%s]", help.Key))
}

func (w *Widget) renderExpanded() string {
	lines := []string{
		theme.Title.Render("Session"),
		theme.Minutes.Render("◷ " + FormatMinutes(w.stats.SessionMinutes)),
		theme.Topics.Render("◆ " + FormatTopics(w.stats.TopicsCompleted)),
	}
	if w.stats.CurrentTopic != "" {
		lines = append(lines, theme.Topic.Render("▸ "+TruncateTopic(w.stats.CurrentTopic, w.cfg.TopicWidth)))
	}
	if badge := w.renderBadge(); badge != "" {
		lines = append(lines, badge)
	}
	if w.onToggle != nil {
		help := w.toggleKey.Help()
		lines = append(lines, theme.Hint.Render(help.Key+" hide"))
	}
	return theme.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (w *Widget) renderBadge() string {
	if w.result == nil {
		return ""
	}
	if w.result.Kind == ResultCorrect {
		return theme.Correct.Render("✓ Correct")
	}
	return theme.Incorrect.Render("✗ Incorrect")
}
