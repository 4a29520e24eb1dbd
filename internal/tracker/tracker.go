// Package tracker keeps per-student learning progress in memory: the current
// session, per-topic answer counts, and the derived strengths and struggling
// areas served by the progress endpoint.
package tracker

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoSession is returned when an answer is logged outside a session.
	ErrNoSession = errors.New("tracker: no active session")
	// ErrObjectiveNotFound is returned when no active objective matches.
	ErrObjectiveNotFound = errors.New("tracker: objective not found")
)

const (
	// minStrengthCorrect is the number of correct answers before a topic can
	// count as a strength.
	minStrengthCorrect = 3
	strengthAccuracy   = 0.75

	// minStruggleAttempts is the number of attempts before a topic can count
	// as a struggling area.
	minStruggleAttempts = 3
	struggleAccuracy    = 0.5

	// minAssessedAttempts is the number of answers after which a topic no
	// longer needs an initial assessment.
	minAssessedAttempts = 2

	defaultDifficulty = "medium"
)

// Level is a coarse knowledge level derived from answer accuracy.
type Level string

const (
	LevelUnknown      Level = "unknown"
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Session is the learning session in progress.
type Session struct {
	ID        string
	StartedAt time.Time
	Topics    []string
	Correct   int
	Incorrect int
}

// TopicProgress holds the answer history of a single topic.
type TopicProgress struct {
	Name             string
	FirstEncountered time.Time
	LastStudied      time.Time
	Correct          int
	Incorrect        int
}

// Attempts returns the total number of answers logged for the topic.
func (p TopicProgress) Attempts() int { return p.Correct + p.Incorrect }

// Accuracy returns the share of correct answers, 0 with no attempts.
func (p TopicProgress) Accuracy() float64 {
	if p.Attempts() == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Attempts())
}

// Assessed reports whether enough answers exist to judge the topic.
func (p TopicProgress) Assessed() bool { return p.Attempts() >= minAssessedAttempts }

// Level classifies the topic from its accuracy and attempt count.
func (p TopicProgress) Level() Level {
	n := p.Attempts()
	acc := p.Accuracy()
	switch {
	case n == 0:
		return LevelUnknown
	case acc >= 0.8 && n >= 5:
		return LevelAdvanced
	case acc >= 0.6 && n >= 3:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// Objective is a learning goal set for a topic.
type Objective struct {
	Topic       string     `json:"topic"`
	Objective   string     `json:"objective"`
	Difficulty  string     `json:"difficulty"`
	CreatedAt   time.Time  `json:"created_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress is the summary served by GET /learning/progress.
type Progress struct {
	TotalSessions   int      `json:"total_sessions"`
	CompletedTopics int      `json:"completed_topics"`
	SessionDuration int      `json:"session_duration"`
	StrugglingAreas []string `json:"struggling_areas"`
	LastTopic       string   `json:"last_topic"`
	LearningTime    int      `json:"learning_time"`
	Strengths       []string `json:"strengths"`
}

// Options configures a Tracker.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Tracker is safe for concurrent use.
type Tracker struct {
	now func() time.Time

	mu            sync.Mutex
	session       *Session
	topics        map[string]*TopicProgress
	totalSessions int
	learningTime  int
	strengths     []string
	struggling    []string
	objectives    []Objective
}

// New creates an empty Tracker.
func New(opts Options) *Tracker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:    now,
		topics: make(map[string]*TopicProgress),
	}
}

// StartSession begins a new session, ending any session in progress.
func (t *Tracker) StartSession() Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.endLocked()
	t.session = &Session{
		ID:        uuid.NewString(),
		StartedAt: t.now(),
	}
	return *t.session
}

// EndSession closes the current session and adds its whole minutes to the
// total learning time. It returns false when no session was active.
func (t *Tracker) EndSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked()
}

func (t *Tracker) endLocked() bool {
	if t.session == nil {
		return false
	}
	t.totalSessions++
	t.learningTime += t.minutesLocked()
	t.session = nil
	return true
}

func (t *Tracker) minutesLocked() int {
	if t.session == nil {
		return 0
	}
	d := t.now().Sub(t.session.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// CurrentSession returns the session in progress.
func (t *Tracker) CurrentSession() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return Session{}, false
	}
	s := *t.session
	s.Topics = slices.Clone(s.Topics)
	return s, true
}

// MarkTopic records that topic was studied now.
func (t *Tracker) MarkTopic(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touchLocked(topic)
}

func (t *Tracker) touchLocked(topic string) *TopicProgress {
	now := t.now()
	p, ok := t.topics[topic]
	if !ok {
		p = &TopicProgress{Name: topic, FirstEncountered: now}
		t.topics[topic] = p
	}
	p.LastStudied = now
	if t.session != nil && !slices.Contains(t.session.Topics, topic) {
		t.session.Topics = append(t.session.Topics, topic)
	}
	return p
}

// LogAnswer records an answer for topic and updates strengths and struggling
// areas. A topic is never in both lists.
func (t *Tracker) LogAnswer(topic string, correct bool) (TopicProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return TopicProgress{}, ErrNoSession
	}
	p := t.touchLocked(topic)

	if correct {
		t.session.Correct++
		p.Correct++
		if p.Correct >= minStrengthCorrect && p.Accuracy() >= strengthAccuracy {
			t.strengths = addOnce(t.strengths, topic)
			t.struggling = remove(t.struggling, topic)
		}
	} else {
		t.session.Incorrect++
		p.Incorrect++
		if p.Attempts() >= minStruggleAttempts && p.Accuracy() < struggleAccuracy {
			t.struggling = addOnce(t.struggling, topic)
			t.strengths = remove(t.strengths, topic)
		}
	}
	return *p, nil
}

// Topic returns the progress recorded for topic.
func (t *Tracker) Topic(topic string) (TopicProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.topics[topic]
	if !ok {
		return TopicProgress{}, false
	}
	return *p, true
}

// Progress returns the current summary.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	var last string
	var latest time.Time
	for name, p := range t.topics {
		// Ties resolve by name so the result does not depend on map order.
		if p.LastStudied.After(latest) || (p.LastStudied.Equal(latest) && name > last) {
			latest = p.LastStudied
			last = name
		}
	}

	return Progress{
		TotalSessions:   t.totalSessions,
		CompletedTopics: len(t.topics),
		SessionDuration: t.minutesLocked(),
		StrugglingAreas: nonNil(t.struggling),
		LastTopic:       last,
		LearningTime:    t.learningTime,
		Strengths:       nonNil(t.strengths),
	}
}

// Reset drops all progress and the current session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.session = nil
	t.topics = make(map[string]*TopicProgress)
	t.totalSessions = 0
	t.learningTime = 0
	t.strengths = nil
	t.struggling = nil
	t.objectives = nil
}

// AddObjective records a new active objective. An empty difficulty
// defaults to "medium".
func (t *Tracker) AddObjective(topic, objective, difficulty string) Objective {
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	o := Objective{
		Topic:      topic,
		Objective:  objective,
		Difficulty: difficulty,
		CreatedAt:  t.now(),
	}
	t.objectives = append(t.objectives, o)
	return o
}

// CompleteObjective marks the oldest active objective with the given text
// as completed.
func (t *Tracker) CompleteObjective(objective string) (Objective, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.objectives {
		o := &t.objectives[i]
		if o.Completed || o.Objective != objective {
			continue
		}
		now := t.now()
		o.Completed = true
		o.CompletedAt = &now
		return *o, nil
	}
	return Objective{}, ErrObjectiveNotFound
}

// ActiveObjectives returns objectives not yet completed, oldest first.
func (t *Tracker) ActiveObjectives() []Objective {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Objective, 0, len(t.objectives))
	for _, o := range t.objectives {
		if !o.Completed {
			out = append(out, o)
		}
	}
	return out
}

func addOnce(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func remove(list []string, s string) []string {
	return slices.DeleteFunc(list, func(v string) bool { return v == s })
}

// nonNil copies list so callers never see a nil slice or share state.
func nonNil(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}
