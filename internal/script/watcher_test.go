package script_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/guion/internal/script"
)

const watchV1 = `
id: v1
steps:
  - id: a
    assistantResponse: hola
`

const watchV2 = `
id: v2
steps:
  - id: a
    assistantResponse: hola
  - id: b
    assistantResponse: adiós
`

const watchBroken = `
id: broken
steps: []
`

// writeScript writes content to path and moves its mtime forward so the
// watcher sees a change even on filesystems with coarse timestamps.
func writeScript(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %q: %v", path, err)
	}
	mtime := time.Now().Add(age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guion.yaml")
	writeScript(t, path, watchV1, -time.Hour)

	w, err := script.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current(); got == nil || got.ID != "v1" {
		t.Fatalf("Current() = %+v, want v1", got)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guion.yaml")
	writeScript(t, path, watchBroken, -time.Hour)

	if _, err := script.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial script, got nil")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guion.yaml")
	writeScript(t, path, watchV1, -time.Hour)

	changed := make(chan *script.Script, 1)
	w, err := script.NewWatcher(path, func(s *script.Script) {
		select {
		case changed <- s:
		default:
		}
	}, script.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	go w.Run(nil)
	defer w.Stop()

	writeScript(t, path, watchV2, 0)

	select {
	case s := <-changed:
		if s.ID != "v2" || s.Len() != 2 {
			t.Errorf("callback got id=%q steps=%d, want v2 with 2 steps", s.ID, s.Len())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}
	if got := w.Current(); got.ID != "v2" {
		t.Errorf("Current().ID = %q, want v2", got.ID)
	}
}

func TestWatcher_BrokenEditKeepsPrevious(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guion.yaml")
	writeScript(t, path, watchV1, -time.Hour)

	calls := make(chan struct{}, 4)
	w, err := script.NewWatcher(path, func(*script.Script) {
		calls <- struct{}{}
	}, script.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	go w.Run(nil)
	defer w.Stop()

	writeScript(t, path, watchBroken, 0)
	time.Sleep(150 * time.Millisecond)

	if len(calls) != 0 {
		t.Errorf("callback invoked %d times for a broken edit, want 0", len(calls))
	}
	if got := w.Current(); got.ID != "v1" {
		t.Errorf("Current().ID = %q, want v1", got.ID)
	}
}

func TestWatcher_StopEndsRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guion.yaml")
	writeScript(t, path, watchV1, -time.Hour)

	w, err := script.NewWatcher(path, nil, script.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	finished := make(chan error, 1)
	go func() { finished <- w.Run(nil) }()

	w.Stop()
	w.Stop()

	select {
	case err := <-finished:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
