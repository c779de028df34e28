// Package script defines conversation scripts: authored, read-only dialogue
// graphs that the player walks through one user turn at a time.
//
// Scripts are produced by an external authoring process and shipped as JSON
// or YAML assets. This package decodes them, enforces the few structural
// rules the player relies on (non-empty, unique step ids) and reports softer
// authoring problems through [Lint] without rejecting the asset.
package script

// Variant is an alternative reply for a step, chosen when the user's input
// matches Pattern.
type Variant struct {
	// Pattern is a regular expression tested case-insensitively against the
	// raw user input. With regex metacharacters removed it also serves as a
	// plain phrase for fuzzy scoring.
	Pattern string `json:"pattern" yaml:"pattern"`

	// Response replaces the step's default reply when this variant is chosen.
	Response string `json:"response" yaml:"response"`

	// AudioFile optionally references pre-recorded audio for Response.
	AudioFile string `json:"audioFile,omitempty" yaml:"audioFile,omitempty"`
}

// Step is one turn of a script.
type Step struct {
	// ID identifies the step within its script.
	ID string `json:"id" yaml:"id"`

	// UserInput is the line the user is expected to say. Empty for steps
	// that do not gate on input, such as an opening greeting.
	UserInput string `json:"userInput,omitempty" yaml:"userInput,omitempty"`

	// AssistantResponse is the default reply when no variant is chosen.
	AssistantResponse string `json:"assistantResponse" yaml:"assistantResponse"`

	// Variants are checked in order; see the player for selection rules.
	Variants []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`

	// NextStepID names the successor step. Empty means the next step in
	// sequence order.
	NextStepID string `json:"nextStepId,omitempty" yaml:"nextStepId,omitempty"`

	// Trigger and Actions are opaque payloads for the host UI. They are
	// relayed verbatim and never interpreted.
	Trigger any   `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Actions []any `json:"actions,omitempty" yaml:"actions,omitempty"`

	// AudioFile optionally references pre-recorded audio for AssistantResponse.
	AudioFile string `json:"audioFile,omitempty" yaml:"audioFile,omitempty"`
}

// Script is a complete conversation. A loaded Script must be treated as
// immutable.
type Script struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	UserProfile map[string]any `json:"userProfile,omitempty" yaml:"userProfile,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"`
}

// IndexOf returns the position of the step with the given id, or -1.
func (s *Script) IndexOf(id string) int {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// Step returns the step with the given id.
func (s *Script) Step(id string) (*Step, bool) {
	i := s.IndexOf(id)
	if i < 0 {
		return nil, false
	}
	return &s.Steps[i], true
}

// Len returns the number of steps.
func (s *Script) Len() int {
	return len(s.Steps)
}
