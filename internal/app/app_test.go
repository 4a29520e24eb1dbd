package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/abhisek/tutorbar/internal/progress"
	"github.com/abhisek/tutorbar/internal/stats"
)

type nopFetcher struct{}

func (nopFetcher) FetchSummary(context.Context) (stats.Summary, error) { return stats.Summary{}, nil }

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, name string, _ json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, name)
	return p.err
}

// noTick keeps timers from firing during shell tests.
func noTick(time.Duration, func(time.Time) tea.Msg) tea.Cmd { return nil }

func newModel(visible bool, pub *recordingPublisher) AppModel {
	opts := Options{
		Progress:     progress.Options{Fetcher: nopFetcher{}, Tick: noTick},
		StartVisible: visible,
	}
	if pub != nil {
		opts.Publisher = pub
	}
	return New(opts)
}

func update(m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(AppModel), cmd
}

func TestToggleFlipsVisibility(t *testing.T) {
	m := newModel(true, nil)
	m.Init()
	if !m.widget.Active() {
		t.Fatal("expected visible panel to be active after Init")
	}

	_, cmd := update(m, tea.KeyPressMsg{Code: 'p', Text: "p"})
	if cmd == nil {
		t.Fatal("expected toggle command")
	}
	m, _ = update(m, cmd())
	if m.visible || m.widget.Active() {
		t.Error("expected panel hidden and inactive after toggle")
	}

	m, _ = update(m, toggleProgressMsg{})
	if !m.visible || !m.widget.Active() {
		t.Error("expected panel visible and active after second toggle")
	}
}

func TestQuitClosesWidget(t *testing.T) {
	m := newModel(true, nil)
	m.Init()

	m, cmd := update(m, tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.widget.Active() {
		t.Error("expected widget closed on quit")
	}
	if m.widget.SetVisible(true) != nil {
		t.Error("expected closed widget to stay inactive")
	}
}

func TestDemoKeysRequirePublisher(t *testing.T) {
	m := newModel(true, nil)
	if _, cmd := update(m, tea.KeyPressMsg{Code: 'c', Text: "c"}); cmd != nil {
		t.Error("expected no command without a publisher")
	}
}

func TestValidateKeyPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	m := newModel(true, pub)

	_, cmd := update(m, tea.KeyPressMsg{Code: 'v', Text: "v"})
	if cmd == nil {
		t.Fatal("expected publish command")
	}
	msg := cmd()
	m, _ = update(m, msg)

	if len(pub.names) != 1 || pub.names[0] != "answerValidated" {
		t.Errorf("unexpected published names %v", pub.names)
	}
	if len(m.activity) != 1 {
		t.Errorf("expected one activity line, got %d", len(m.activity))
	}
}

func TestRecordPublishedTalliesAnswers(t *testing.T) {
	m := newModel(true, &recordingPublisher{})
	yes, no := true, false

	m, _ = update(m, publishedMsg{name: "answerResult", correct: &yes})
	m, _ = update(m, publishedMsg{name: "answerResult", correct: &no})
	m, _ = update(m, publishedMsg{name: "answerResult", err: errors.New("refused")})

	if m.answered != 2 || m.correct != 1 {
		t.Errorf("expected 1/2 answers, got %d/%d", m.correct, m.answered)
	}
	if len(m.activity) != 3 {
		t.Errorf("expected three activity lines, got %d", len(m.activity))
	}

	for i := 0; i < maxActivity+3; i++ {
		m, _ = update(m, publishedMsg{name: "answerValidated"})
	}
	if len(m.activity) != maxActivity {
		t.Errorf("expected activity capped at %d, got %d", maxActivity, len(m.activity))
	}
}

func TestViewDocksPanel(t *testing.T) {
	m := newModel(true, &recordingPublisher{})
	m, _ = update(m, tea.WindowSizeMsg{Width: 90, Height: 24})

	out := ansi.Strip(fmt.Sprint(m.View().Content))
	for _, want := range []string{"tutorbar", "Practice", "0m", "0 topics", "Correct", "Quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = update(m, toggleProgressMsg{})
	out = ansi.Strip(fmt.Sprint(m.View().Content))
	if !strings.Contains(out, "Progress [p]") {
		t.Error("expected collapsed badge when hidden")
	}
}

func TestViewTooSmall(t *testing.T) {
	m := newModel(true, nil)
	m, _ = update(m, tea.WindowSizeMsg{Width: 20, Height: 5})
	if !strings.Contains(fmt.Sprint(m.View().Content), "Terminal too small") {
		t.Error("expected min size message")
	}
}
