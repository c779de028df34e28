package player

import (
	"maps"
	"slices"
	"time"
)

// Deviation records a turn whose input did not match the step's expected line.
// Deviations are observational only; they never block advancement.
type Deviation struct {
	StepID        string
	UserInput     string
	ExpectedInput string
	Timestamp     time.Time
}

// Session is the mutable playback state of one loaded script.
type Session struct {
	// ID uniquely identifies this playback.
	ID string

	// ScriptID is the id of the script being played.
	ScriptID string

	// CurrentStepIndex is the position of the next step to play. It equals
	// the number of steps once the script is complete.
	CurrentStepIndex int

	// CompletedSteps holds the ids of every step played at least once.
	CompletedSteps map[string]struct{}

	// Deviations lists unmatched turns in the order they happened.
	Deviations []Deviation

	StartedAt   time.Time
	CompletedAt *time.Time
}

// clone returns a deep copy so callers cannot mutate live state.
func (s *Session) clone() Session {
	c := *s
	c.CompletedSteps = maps.Clone(s.CompletedSteps)
	c.Deviations = slices.Clone(s.Deviations)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Summary is a point-in-time digest of a session.
type Summary struct {
	ScriptID  string
	SessionID string

	// DurationSeconds is the whole number of seconds between the session
	// start and its completion, or now if it has not completed.
	DurationSeconds int

	StepsCompleted int
	TotalSteps     int
	Deviations     int

	// Progress is the percentage of steps completed, 0–100.
	Progress int
}
