package script

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultWatchInterval = 2 * time.Second

// Watcher polls a script asset and reports new versions. A version is
// reported only when its content hash changes and it decodes and validates;
// broken edits are logged and the previous version stays current.
type Watcher struct {
	path     string
	format   Format
	interval time.Duration
	onChange func(*Script)

	mu        sync.Mutex
	current   *Script
	lastMtime time.Time
	lastHash  [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 2 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the script at path and returns a Watcher for it. Polling
// does not start until [Watcher.Run] is called.
func NewWatcher(path string, onChange func(*Script), opts ...WatcherOption) (*Watcher, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		format:   format,
		interval: defaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	s, hash, mtime, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("script: watcher initial load: %w", err)
	}
	w.current = s
	w.lastHash = hash
	w.lastMtime = mtime
	return w, nil
}

// Current returns the most recently loaded valid script.
func (w *Watcher) Current() *Script {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until Stop is called or done is closed. It always returns nil
// so it can be used directly in an errgroup.
func (w *Watcher) Run(done <-chan struct{}) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-w.done:
			return nil
		case <-ticker.C:
			w.check()
		}
	}
}

// Stop ends a running poll loop. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("script watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.lastMtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	s, hash, mtime, err := w.read()
	if err != nil {
		slog.Warn("script watcher: keeping previous version", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	w.lastMtime = mtime
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	w.current = s
	w.lastHash = hash
	w.mu.Unlock()

	slog.Info("script watcher: script reloaded", "path", w.path, "script", s.ID, "steps", s.Len())

	if w.onChange != nil {
		w.onChange(s)
	}
}

func (w *Watcher) read() (*Script, [sha256.Size]byte, time.Time, error) {
	var zero [sha256.Size]byte

	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	s, err := Decode(bytes.NewReader(data), w.format)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	return s, sha256.Sum256(data), info.ModTime(), nil
}
