package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker() (*Tracker, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(Options{Now: c.Now}), c
}

func TestEmptyProgress(t *testing.T) {
	tr, _ := newTracker()
	p := tr.Progress()

	assert.Equal(t, Progress{StrugglingAreas: []string{}, Strengths: []string{}}, p)
}

func TestSessionDurationAndLearningTime(t *testing.T) {
	tr, c := newTracker()
	s := tr.StartSession()
	assert.NotEmpty(t, s.ID)

	c.Advance(5*time.Minute + 40*time.Second)
	assert.Equal(t, 5, tr.Progress().SessionDuration)

	require.True(t, tr.EndSession())
	p := tr.Progress()
	assert.Equal(t, 1, p.TotalSessions)
	assert.Equal(t, 5, p.LearningTime)
	assert.Zero(t, p.SessionDuration)

	assert.False(t, tr.EndSession())
}

func TestStartSessionEndsPrevious(t *testing.T) {
	tr, c := newTracker()
	first := tr.StartSession()
	c.Advance(3 * time.Minute)
	second := tr.StartSession()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, tr.Progress().TotalSessions)
	assert.Equal(t, 3, tr.Progress().LearningTime)
}

func TestLogAnswerRequiresSession(t *testing.T) {
	tr, _ := newTracker()
	_, err := tr.LogAnswer("fractions", true)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStrengthsAndStrugglingAreas(t *testing.T) {
	tr, _ := newTracker()
	tr.StartSession()

	for i := 0; i < 3; i++ {
		_, err := tr.LogAnswer("addition", true)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"addition"}, tr.Progress().Strengths)

	tr.LogAnswer("division", false)
	tr.LogAnswer("division", true)
	assert.Empty(t, tr.Progress().StrugglingAreas, "needs three attempts")
	tr.LogAnswer("division", false)
	assert.Equal(t, []string{"division"}, tr.Progress().StrugglingAreas)

	// Accuracy of addition drops to 3/7: it moves from strengths to struggling.
	for i := 0; i < 4; i++ {
		tr.LogAnswer("addition", false)
	}
	p := tr.Progress()
	assert.NotContains(t, p.Strengths, "addition")
	assert.ElementsMatch(t, []string{"division", "addition"}, p.StrugglingAreas)

	// Nine more correct answers bring it to 12/16, back to a strength.
	for i := 0; i < 9; i++ {
		tr.LogAnswer("addition", true)
	}
	p = tr.Progress()
	assert.Contains(t, p.Strengths, "addition")
	assert.NotContains(t, p.StrugglingAreas, "addition")
}

func TestProgressCounts(t *testing.T) {
	tr, c := newTracker()
	tr.StartSession()

	tr.LogAnswer("addition", true)
	c.Advance(time.Minute)
	tr.MarkTopic("fractions")
	c.Advance(time.Minute)
	tr.LogAnswer("geometry", false)

	p := tr.Progress()
	assert.Equal(t, 3, p.CompletedTopics)
	assert.Equal(t, "geometry", p.LastTopic)
	assert.Equal(t, 2, p.SessionDuration)

	s, ok := tr.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, []string{"addition", "fractions", "geometry"}, s.Topics)
	assert.Equal(t, 1, s.Correct)
	assert.Equal(t, 1, s.Incorrect)
}

func TestTopicLevel(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		wrong   int
		want    Level
	}{
		{"no answers", 0, 0, LevelUnknown},
		{"few answers", 2, 0, LevelBeginner},
		{"intermediate", 2, 1, LevelIntermediate},
		{"advanced", 4, 1, LevelAdvanced},
		{"low accuracy", 1, 4, LevelBeginner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TopicProgress{Correct: tt.correct, Incorrect: tt.wrong}
			assert.Equal(t, tt.want, p.Level())
		})
	}
}

func TestReset(t *testing.T) {
	tr, _ := newTracker()
	tr.StartSession()
	tr.LogAnswer("addition", true)

	tr.Reset()

	_, ok := tr.CurrentSession()
	assert.False(t, ok)
	_, ok = tr.Topic("addition")
	assert.False(t, ok)
	assert.Equal(t, Progress{StrugglingAreas: []string{}, Strengths: []string{}}, tr.Progress())
}

func TestTopicAssessed(t *testing.T) {
	tr, _ := newTracker()
	tr.StartSession()

	p, _ := tr.LogAnswer("fractions", true)
	assert.False(t, p.Assessed())
	p, _ = tr.LogAnswer("fractions", false)
	assert.True(t, p.Assessed())
}

func TestObjectives(t *testing.T) {
	tr, c := newTracker()
	created := c.Now()

	o := tr.AddObjective("fractions", "add unlike denominators", "")
	assert.Equal(t, "medium", o.Difficulty)
	assert.Equal(t, created, o.CreatedAt)
	tr.AddObjective("geometry", "area of a triangle", "hard")
	require.Len(t, tr.ActiveObjectives(), 2)

	c.Advance(10 * time.Minute)
	done, err := tr.CompleteObjective("add unlike denominators")
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, created.Add(10*time.Minute), *done.CompletedAt)

	active := tr.ActiveObjectives()
	require.Len(t, active, 1)
	assert.Equal(t, "area of a triangle", active[0].Objective)

	_, err = tr.CompleteObjective("add unlike denominators")
	assert.ErrorIs(t, err, ErrObjectiveNotFound)

	tr.Reset()
	assert.Empty(t, tr.ActiveObjectives())
	assert.NotNil(t, tr.ActiveObjectives())
}
