package script

import (
	"fmt"
	"regexp"
)

// Problem is an authoring mistake that does not prevent playback.
type Problem struct {
	StepID  string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("step %q: %s", p.StepID, p.Message)
}

// Lint reports authoring problems in s:
//
//   - a nextStepId naming no step (playback would stay on the same step),
//   - a variant pattern that does not compile (the variant never matches by regex),
//   - a step or variant with an empty response.
//
// Problems are returned in step order.
func Lint(s *Script) []Problem {
	if s == nil {
		return nil
	}
	var problems []Problem
	for _, st := range s.Steps {
		if st.NextStepID != "" && s.IndexOf(st.NextStepID) < 0 {
			problems = append(problems, Problem{
				StepID:  st.ID,
				Message: fmt.Sprintf("nextStepId %q does not exist", st.NextStepID),
			})
		}
		if st.AssistantResponse == "" {
			problems = append(problems, Problem{StepID: st.ID, Message: "assistantResponse is empty"})
		}
		for i, v := range st.Variants {
			if _, err := CompilePattern(v.Pattern); err != nil {
				problems = append(problems, Problem{
					StepID:  st.ID,
					Message: fmt.Sprintf("variants[%d].pattern %q is invalid: %v", i, v.Pattern, err),
				})
			}
			if v.Response == "" {
				problems = append(problems, Problem{
					StepID:  st.ID,
					Message: fmt.Sprintf("variants[%d].response is empty", i),
				})
			}
		}
	}
	return problems
}

// CompilePattern compiles a variant pattern for case-insensitive matching.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}
