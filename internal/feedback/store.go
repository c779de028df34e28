// Package feedback records how each conversation went: steps covered, time
// taken and every line the learner said differently from the script.
// Reports are stored as append-only JSON lines in a local file.
package feedback

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/guion/internal/player"
)

// Reasons a report is written.
const (
	ReasonShutdown = "shutdown"
	ReasonReload   = "reload"
)

// Deviation is one off-script utterance.
type Deviation struct {
	StepID   string    `json:"step_id"`
	Said     string    `json:"said"`
	Expected string    `json:"expected"`
	At       time.Time `json:"at"`
}

// Report is a single session entry in the file store.
type Report struct {
	Timestamp       time.Time   `json:"timestamp"`
	Reason          string      `json:"reason"`
	SessionID       string      `json:"session_id"`
	ScriptID        string      `json:"script_id"`
	DurationSeconds int         `json:"duration_seconds"`
	StepsCompleted  int         `json:"steps_completed"`
	TotalSteps      int         `json:"total_steps"`
	Progress        int         `json:"progress"`
	Completed       bool        `json:"completed"`
	Deviations      []Deviation `json:"deviations,omitempty"`
}

// NewReport builds a report from a session and its summary.
func NewReport(reason string, sess player.Session, sum player.Summary, now time.Time) Report {
	r := Report{
		Timestamp:       now.UTC(),
		Reason:          reason,
		SessionID:       sum.SessionID,
		ScriptID:        sum.ScriptID,
		DurationSeconds: sum.DurationSeconds,
		StepsCompleted:  sum.StepsCompleted,
		TotalSteps:      sum.TotalSteps,
		Progress:        sum.Progress,
		Completed:       sum.StepsCompleted == sum.TotalSteps,
	}
	for _, d := range sess.Deviations {
		r.Deviations = append(r.Deviations, Deviation{
			StepID:   d.StepID,
			Said:     d.UserInput,
			Expected: d.ExpectedInput,
			At:       d.Timestamp.UTC(),
		})
	}
	return r
}

// FileStore persists reports as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to path. The file is created
// on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save appends r to the file.
func (fs *FileStore) Save(r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("feedback: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("feedback: close: %w", err)
	}
	return nil
}

// Load reads every report in the file, oldest first. A missing file yields
// no reports.
func (fs *FileStore) Load() ([]Report, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]Report, error) {
	var out []Report
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rep Report
		if err := json.Unmarshal(sc.Bytes(), &rep); err != nil {
			return out, fmt.Errorf("feedback: line %d: %w", line, err)
		}
		out = append(out, rep)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("feedback: read: %w", err)
	}
	return out, nil
}
