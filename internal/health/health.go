// Package health serves liveness and readiness probes for the ops listener.
//
//   - /healthz always answers 200 while the process can serve HTTP.
//   - /readyz answers 200 only when every registered [Checker] passes.
//   - /session reports the live conversation summary, or 404 when idle.
//
// Probe bodies are JSON objects with a "status" field ("ok" or "fail") and a
// "checks" map holding the outcome of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/guion/internal/player"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// ErrNoScript is reported by [ScriptLoaded] while the player is idle.
var ErrNoScript = errors.New("no script loaded")

// Checker is a named readiness check. Check returns nil when healthy.
type Checker struct {
	// Name is the key used in the JSON response (e.g. "script").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// ActivityReporter is the part of [player.Player] the script check needs.
type ActivityReporter interface {
	IsActive() bool
}

// ScriptLoaded returns a [Checker] that fails while p has no script loaded.
func ScriptLoaded(p ActivityReporter) Checker {
	return Checker{
		Name: "script",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !p.IsActive() {
				return ErrNoScript
			}
			return nil
		},
	}
}

// SummaryReporter is the part of [player.Player] the session endpoint needs.
type SummaryReporter interface {
	Summary() (player.Summary, bool)
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type sessionBody struct {
	ScriptID        string `json:"scriptId"`
	SessionID       string `json:"sessionId"`
	DurationSeconds int    `json:"durationSeconds"`
	StepsCompleted  int    `json:"stepsCompleted"`
	TotalSteps      int    `json:"totalSteps"`
	Deviations      int    `json:"deviations"`
	Progress        int    `json:"progress"`
}

// Handler serves the probe endpoints. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	sessions SummaryReporter
}

// Option configures a [Handler].
type Option func(*Handler)

// WithSession enables /session backed by r.
func WithSession(r SummaryReporter) Option {
	return func(h *Handler) {
		h.sessions = r
	}
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{checkers: append([]Checker(nil), checkers...)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under a [checkTimeout]
// deadline derived from the request, and answers 503 if any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		g      errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				return fmt.Errorf("health: %s: %w", c.Name, err)
			}
			checks[c.Name] = "ok"
			return nil
		})
	}
	err := g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if err != nil {
		slog.Warn("health: readiness check failed", "err", err)
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Session writes the live session summary.
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	if h.sessions == nil {
		writeJSON(w, http.StatusNotFound, result{Status: "fail"})
		return
	}
	sum, ok := h.sessions.Summary()
	if !ok {
		writeJSON(w, http.StatusNotFound, result{Status: "fail", Checks: map[string]string{"script": ErrNoScript.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, sessionBody{
		ScriptID:        sum.ScriptID,
		SessionID:       sum.SessionID,
		DurationSeconds: sum.DurationSeconds,
		StepsCompleted:  sum.StepsCompleted,
		TotalSteps:      sum.TotalSteps,
		Deviations:      sum.Deviations,
		Progress:        sum.Progress,
	})
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /session", h.Session)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
