package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/tutorbar/internal/ui/theme"
)

// Meter displays a count out of a total as a horizontal bar followed by
// "n/total".
type Meter struct {
	Label string
	Value int
	Total int
	Width int
}

// Fraction returns Value/Total clamped to [0, 1].
func (m Meter) Fraction() float64 {
	if m.Total <= 0 {
		return 0
	}
	f := float64(m.Value) / float64(m.Total)
	return min(max(f, 0), 1)
}

// View renders the meter.
func (m Meter) View() string {
	var b strings.Builder
	if m.Label != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Render(m.Label))
		b.WriteString("  ")
	}

	count := fmt.Sprintf("  %d/%d", max(m.Value, 0), max(m.Total, 0))
	barWidth := m.Width - lipgloss.Width(b.String()) - len(count)
	if barWidth < 4 {
		barWidth = 4
	}
	filled := int(float64(barWidth) * m.Fraction())

	b.WriteString(lipgloss.NewStyle().Background(theme.Secondary).Render(strings.Repeat(" ", filled)))
	b.WriteString(lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", barWidth-filled)))
	b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render(count))
	return b.String()
}
