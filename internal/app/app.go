package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/progress"
	"github.com/abhisek/tutorbar/internal/ui/components"
	"github.com/abhisek/tutorbar/internal/ui/layout"
	"github.com/abhisek/tutorbar/internal/ui/theme"
)

const (
	publishTimeout = 5 * time.Second
	maxActivity    = 6
)

// Options configures the TUI shell.
type Options struct {
	// Progress configures the docked panel. Visible and OnToggle are owned
	// by the shell and overwritten.
	Progress progress.Options
	// StartVisible is the initial panel visibility.
	StartVisible bool
	// Publisher enables the demo keys that emit learning signals.
	Publisher notify.Publisher
	// Status is shown on the right of the header.
	Status string
	Logger *zap.Logger
}

type toggleProgressMsg struct{}

type publishedMsg struct {
	name    string
	correct *bool
	err     error
}

type keyMap struct {
	Quit      key.Binding
	Correct   key.Binding
	Incorrect key.Binding
	Validate  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("Ctrl+C", "Quit")),
		Correct:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "Correct")),
		Incorrect: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "Incorrect")),
		Validate:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "Validate")),
	}
}

// AppModel is the root Bubble Tea model. It owns the panel visibility flag.
type AppModel struct {
	widget    *progress.Widget
	publisher notify.Publisher
	logger    *zap.Logger
	keys      keyMap
	status    string

	visible bool
	width   int
	height  int

	activity []string
	answered int
	correct  int
}

// New creates the root model.
func New(opts Options) AppModel {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	popts := opts.Progress
	popts.Visible = opts.StartVisible
	popts.OnToggle = func() tea.Msg { return toggleProgressMsg{} }
	if popts.Logger == nil {
		popts.Logger = logger
	}
	return AppModel{
		widget:    progress.New(popts),
		publisher: opts.Publisher,
		logger:    logger.Named("app"),
		keys:      defaultKeys(),
		status:    opts.Status,
		visible:   opts.StartVisible,
	}
}

func (m AppModel) Init() tea.Cmd {
	return m.widget.Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case toggleProgressMsg:
		m.visible = !m.visible
		return m, m.widget.SetVisible(m.visible)

	case publishedMsg:
		m.recordPublished(msg)
		return m, nil

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.widget.Close()
			return m, tea.Quit
		case m.publisher != nil && key.Matches(msg, m.keys.Correct):
			return m, m.answer(true)
		case m.publisher != nil && key.Matches(msg, m.keys.Incorrect):
			return m, m.answer(false)
		case m.publisher != nil && key.Matches(msg, m.keys.Validate):
			return m, m.publish(notify.SignalAnswerValidated, nil, nil)
		}
	}

	return m, m.widget.Update(msg)
}

// answer emits the same pair of signals the tutor sends after grading.
func (m AppModel) answer(correct bool) tea.Cmd {
	return tea.Sequence(
		m.publish(notify.SignalAnswerValidated, nil, nil),
		m.publish(notify.SignalAnswerResult, notify.EncodeAnswerResult(correct), &correct),
	)
}

func (m AppModel) publish(name string, payload json.RawMessage, correct *bool) tea.Cmd {
	pub := m.publisher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		return publishedMsg{name: name, correct: correct, err: pub.Publish(ctx, name, payload)}
	}
}

func (m *AppModel) recordPublished(msg publishedMsg) {
	var line string
	switch {
	case msg.err != nil:
		m.logger.Warn("publish signal failed", zap.String("name", msg.name), zap.Error(msg.err))
		line = theme.Incorrect.Render("! " + msg.name + " failed")
	case msg.correct != nil:
		m.answered++
		result := "incorrect"
		if *msg.correct {
			m.correct++
			result = "correct"
		}
		line = fmt.Sprintf("→ %s (%s)", msg.name, result)
	default:
		line = "→ " + msg.name
	}
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	header := layout.RenderHeader("Practice", m.status, m.width)
	footer := layout.RenderFooter(m.footerHints(), m.width)

	content := layout.DockRight(m.renderMain(), m.widget.View(), m.width)
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

func (m AppModel) renderMain() string {
	lines := []string{
		theme.Title.Render("Session"),
		theme.Hint.Render("Answers graded by your tutor update the panel live."),
		"",
	}
	if m.publisher != nil {
		lines = append(lines, components.Meter{
			Label: "Answers",
			Value: m.correct,
			Total: m.answered,
			Width: 32,
		}.View(), "")
	}
	if len(m.activity) == 0 {
		lines = append(lines, theme.Hint.Render("No signals sent yet."))
	} else {
		lines = append(lines, theme.Body.Render(strings.Join(m.activity, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m AppModel) footerHints() []layout.KeyHint {
	toggle := m.widget.ToggleKey().Help()
	hints := []layout.KeyHint{{Key: toggle.Key, Description: "Progress"}}
	if m.publisher != nil {
		for _, b := range []key.Binding{m.keys.Correct, m.keys.Incorrect, m.keys.Validate} {
			h := b.Help()
			hints = append(hints, layout.KeyHint{Key: h.Key, Description: h.Desc})
		}
	}
	quit := m.keys.Quit.Help()
	return append(hints, layout.KeyHint{Key: quit.Key, Description: quit.Desc})
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
