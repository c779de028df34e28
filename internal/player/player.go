// Package player plays conversation scripts turn by turn.
//
// A [Player] owns at most one loaded [script.Script] and one live [Session].
// Each call to [Player.ProcessInput] consumes one user utterance: it decides
// whether the utterance matched the current step's expected line, picks the
// reply (a regex variant, the closest fuzzy variant, or the step default),
// records progress and deviations, and advances to the next step.
//
// The player favours availability over strictness. Malformed variant
// patterns, unknown nextStepId references and calls without a loaded script
// all degrade to a renderable reply instead of an error.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/guion/internal/observe"
	"github.com/MrWong99/guion/internal/script"
	"github.com/MrWong99/guion/internal/similarity"
)

// Replies used when there is no step to play.
const (
	NoScriptMessage = "No hay ningún guion activo."
	CompleteMessage = "La conversación ha terminado. ¡Gracias!"
)

const hintTemplate = "Prueba a decir: %q"

// Selection reports where a turn's reply came from.
type Selection string

const (
	SelectionRegex   Selection = observe.SelectionRegex
	SelectionFuzzy   Selection = observe.SelectionFuzzy
	SelectionDefault Selection = observe.SelectionDefault
)

// Result is the outcome of one processed turn.
type Result struct {
	Response  string
	AudioFile string

	// Trigger and Actions are the step's opaque payloads, relayed verbatim.
	Trigger any
	Actions []any

	// Matched reports whether the input matched the step's expected line.
	// It is always false for steps without an expected line.
	Matched bool

	// IsComplete reports whether the script has no steps left.
	IsComplete bool

	// MatchQuality is the 0–100 confidence of the best match found, either
	// against the expected line or against a variant.
	MatchQuality int

	// StepID is the id of the step that produced the reply. Empty when no
	// step was played.
	StepID string

	Selection Selection
}

// ResponseListener is notified after every played turn with the reply and
// the step's side-channel payloads. It runs synchronously on the caller's
// goroutine; panics are not recovered.
type ResponseListener func(response string, trigger any, actions []any)

// Option is a functional option for configuring a [Player].
type Option func(*Player)

// WithThreshold sets the default match threshold used by
// [Player.ProcessInput]. Default: [similarity.DefaultThreshold].
func WithThreshold(threshold int) Option {
	return func(p *Player) {
		p.threshold.Store(int32(threshold))
	}
}

// WithVariantFloor sets the minimum fuzzy score a variant needs to replace
// the step default when no variant regex matched. Default: 1, so any
// non-zero score wins.
func WithVariantFloor(floor int) Option {
	return func(p *Player) {
		if floor > 0 {
			p.variantFloor.Store(int32(floor))
		}
	}
}

// WithClock replaces time.Now for session and deviation timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithIDGenerator replaces the session id generator (random UUIDs by default).
func WithIDGenerator(gen func() string) Option {
	return func(p *Player) {
		p.newID = gen
	}
}

// WithMetrics records playback metrics on m. When nil (the default) no
// metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Player) {
		p.metrics = m
	}
}

// compiledVariant caches a variant pattern's compilation outcome and its
// plain-text form for fuzzy scoring.
type compiledVariant struct {
	re    *regexp.Regexp
	err   error
	plain string
}

// Player is a scripted-conversation state machine. It is Idle until a script
// is loaded, Playing while steps remain and Complete once the last step has
// been played.
//
// All methods are safe for concurrent use, though turns are expected to be
// fed one at a time.
type Player struct {
	threshold    atomic.Int32
	variantFloor atomic.Int32
	now          func() time.Time
	newID        func() string
	metrics      *observe.Metrics

	mu       sync.Mutex
	listener ResponseListener
	script   *script.Script
	compiled [][]compiledVariant
	session  *Session
}

// New returns an idle [Player] configured with opts.
func New(opts ...Option) *Player {
	p := &Player{
		now:   time.Now,
		newID: uuid.NewString,
	}
	p.threshold.Store(similarity.DefaultThreshold)
	p.variantFloor.Store(1)
	for _, o := range opts {
		o(p)
	}
	return p
}

// OnResponse registers fn as the response listener, replacing any previous
// one. A nil fn removes the listener.
func (p *Player) OnResponse(fn ResponseListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = fn
}

// Load starts playing s from its first step. Any existing session is
// discarded together with its history. Load(nil) is equivalent to [Player.Unload].
func (p *Player) Load(s *script.Script) {
	if s == nil {
		p.Unload()
		return
	}
	compiled := compileVariants(s)

	p.mu.Lock()
	prev := p.endLocked()
	p.script = s
	p.compiled = compiled
	p.startLocked()
	p.mu.Unlock()

	ctx := context.Background()
	if p.metrics != nil {
		if prev != "" {
			p.metrics.SessionEnded(ctx, prev)
		}
		p.metrics.SessionStarted(ctx, s.ID)
	}
	slog.Debug("player: script loaded", "script", s.ID, "steps", s.Len())
}

// Reset restarts the loaded script from its first step with a fresh
// session. It does nothing when no script is loaded.
func (p *Player) Reset() {
	p.mu.Lock()
	if p.script == nil {
		p.mu.Unlock()
		return
	}
	prev := p.endLocked()
	p.startLocked()
	id := p.script.ID
	p.mu.Unlock()

	if p.metrics != nil {
		ctx := context.Background()
		if prev != "" {
			p.metrics.SessionEnded(ctx, prev)
		}
		p.metrics.SessionStarted(ctx, id)
	}
}

// Unload ends the session and returns the player to Idle. A session that
// had not completed is stamped as completed now.
func (p *Player) Unload() {
	p.mu.Lock()
	var scriptID string
	stamped := false
	if p.session != nil {
		scriptID = p.session.ScriptID
		if p.session.CompletedAt == nil {
			now := p.now()
			p.session.CompletedAt = &now
			stamped = true
		}
	}
	p.session = nil
	p.script = nil
	p.compiled = nil
	p.mu.Unlock()

	if p.metrics != nil && scriptID != "" {
		ctx := context.Background()
		if stamped {
			p.metrics.SessionCompleted(ctx, scriptID)
		}
		p.metrics.SessionEnded(ctx, scriptID)
	}
}

// startLocked creates a fresh session for p.script. A script without steps
// starts complete. p.mu must be held.
func (p *Player) startLocked() {
	now := p.now()
	p.session = &Session{
		ID:             p.newID(),
		ScriptID:       p.script.ID,
		CompletedSteps: make(map[string]struct{}, len(p.script.Steps)),
		StartedAt:      now,
	}
	if len(p.script.Steps) == 0 {
		p.session.CompletedAt = &now
	}
}

// endLocked drops the current session and returns its script id, or "" if
// there was none. p.mu must be held.
func (p *Player) endLocked() string {
	if p.session == nil {
		return ""
	}
	id := p.session.ScriptID
	p.session = nil
	return id
}

// ProcessInput plays the current step against input using the player's
// default threshold.
func (p *Player) ProcessInput(input string) Result {
	return p.ProcessInputThreshold(input, int(p.threshold.Load()))
}

// Tune replaces the default match threshold and the variant floor while
// playing. A floor below 1 is ignored. The live session is kept.
func (p *Player) Tune(threshold, variantFloor int) {
	p.threshold.Store(int32(threshold))
	if variantFloor > 0 {
		p.variantFloor.Store(int32(variantFloor))
	}
}

// ProcessInputThreshold plays the current step against input.
//
// Without a loaded script it returns [NoScriptMessage]; once the script is
// complete it returns [CompleteMessage] with IsComplete set. Otherwise the
// step is marked completed, an unmatched expected line is logged as a
// deviation, and the player advances to the step's nextStepId or, when that
// is empty, to the following step. A nextStepId naming no step leaves the
// player where it is.
func (p *Player) ProcessInputThreshold(input string, threshold int) Result {
	started := time.Now()

	p.mu.Lock()
	if p.script == nil || p.session == nil {
		p.mu.Unlock()
		return Result{Response: NoScriptMessage, Selection: SelectionDefault}
	}
	sess := p.session
	steps := p.script.Steps
	if sess.CurrentStepIndex >= len(steps) {
		p.mu.Unlock()
		return Result{Response: CompleteMessage, IsComplete: true, Selection: SelectionDefault}
	}

	idx := sess.CurrentStepIndex
	step := &steps[idx]

	matched := false
	quality := 0
	if step.UserInput != "" {
		matched = similarity.MatchesExpectedInput(input, step.UserInput, threshold)
		quality = similarity.Similarity(input, step.UserInput)
	}

	choice := p.chooseReply(step, p.compiled[idx], input)

	res := Result{
		Response:     choice.response,
		AudioFile:    choice.audioFile,
		Trigger:      step.Trigger,
		Actions:      step.Actions,
		Matched:      matched,
		MatchQuality: max(quality, choice.strength),
		StepID:       step.ID,
		Selection:    choice.selection,
	}

	sess.CompletedSteps[step.ID] = struct{}{}
	if !matched && step.UserInput != "" {
		sess.Deviations = append(sess.Deviations, Deviation{
			StepID:        step.ID,
			UserInput:     input,
			ExpectedInput: step.UserInput,
			Timestamp:     p.now(),
		})
	}

	p.advanceLocked(step)

	completedNow := false
	if sess.CurrentStepIndex >= len(steps) {
		res.IsComplete = true
		if sess.CompletedAt == nil {
			now := p.now()
			sess.CompletedAt = &now
			completedNow = true
		}
	}

	listener := p.listener
	scriptID := p.script.ID
	p.mu.Unlock()

	if p.metrics != nil {
		ctx := context.Background()
		p.metrics.RecordTurn(ctx, observe.TurnRecord{
			ScriptID:     scriptID,
			Matched:      matched,
			Selection:    string(res.Selection),
			MatchQuality: res.MatchQuality,
			Duration:     time.Since(started),
		})
		if completedNow {
			p.metrics.SessionCompleted(ctx, scriptID)
		}
	}

	if listener != nil {
		listener(res.Response, step.Trigger, step.Actions)
	}
	return res
}

// advanceLocked moves the session past step. p.mu must be held.
func (p *Player) advanceLocked(step *script.Step) {
	sess := p.session
	if step.NextStepID == "" {
		sess.CurrentStepIndex++
		return
	}
	if next := p.script.IndexOf(step.NextStepID); next >= 0 {
		sess.CurrentStepIndex = next
		return
	}
	slog.Warn("player: nextStepId does not exist, staying on step",
		"script", p.script.ID,
		"step", step.ID,
		"next_step_id", step.NextStepID,
	)
	if p.metrics != nil {
		p.metrics.RecordDanglingNextStep(context.Background(), p.script.ID, step.ID)
	}
}

// reply is the outcome of variant selection for one turn.
type reply struct {
	response  string
	audioFile string
	strength  int
	selection Selection
}

// chooseReply selects the reply for step in two passes. The regex pass
// returns the first variant whose pattern matches input. Failing that, the
// fuzzy pass scores each valid variant's plain-text pattern and keeps the highest
// score, earliest first on ties. The step default is used when the best
// fuzzy score is below the variant floor.
func (p *Player) chooseReply(step *script.Step, compiled []compiledVariant, input string) reply {
	for i, cv := range compiled {
		if cv.err != nil {
			slog.Warn("player: skipping invalid variant pattern",
				"script", p.script.ID,
				"step", step.ID,
				"pattern", step.Variants[i].Pattern,
				"err", cv.err,
			)
			if p.metrics != nil {
				p.metrics.RecordInvalidPattern(context.Background(), p.script.ID, step.ID)
			}
			continue
		}
		if cv.re.MatchString(input) {
			v := step.Variants[i]
			return reply{response: v.Response, audioFile: v.AudioFile, strength: 100, selection: SelectionRegex}
		}
	}

	best, bestScore := -1, 0
	for i, cv := range compiled {
		if cv.err != nil {
			continue
		}
		if s := similarity.Similarity(input, cv.plain); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore >= int(p.variantFloor.Load()) {
		v := step.Variants[best]
		return reply{response: v.Response, audioFile: v.AudioFile, strength: bestScore, selection: SelectionFuzzy}
	}
	return reply{
		response:  step.AssistantResponse,
		audioFile: step.AudioFile,
		strength:  bestScore,
		selection: SelectionDefault,
	}
}

func compileVariants(s *script.Script) [][]compiledVariant {
	out := make([][]compiledVariant, len(s.Steps))
	for i, st := range s.Steps {
		if len(st.Variants) == 0 {
			continue
		}
		cvs := make([]compiledVariant, len(st.Variants))
		for j, v := range st.Variants {
			re, err := script.CompilePattern(v.Pattern)
			cvs[j] = compiledVariant{re: re, err: err, plain: plainPattern(v.Pattern)}
		}
		out[i] = cvs
	}
	return out
}

// plainPattern strips regex metacharacters so a pattern like "^(quiero|deseo) pagar$"
// can be scored as the phrase "quierodeseo pagar".
func plainPattern(pattern string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`.*+?^${}()|[]\`, r) {
			return -1
		}
		return r
	}, pattern)
}

// Progress returns the percentage of steps played at least once, or 0 when
// no script is loaded.
func (p *Player) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressLocked()
}

func (p *Player) progressLocked() int {
	if p.script == nil || p.session == nil || len(p.script.Steps) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(p.session.CompletedSteps)) / float64(len(p.script.Steps))))
}

// SkipToStep jumps to the step with the given id without marking it
// completed or recording a deviation. It reports whether the step exists;
// on false the session is unchanged.
func (p *Player) SkipToStep(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.script == nil || p.session == nil {
		return false
	}
	i := p.script.IndexOf(id)
	if i < 0 {
		return false
	}
	p.session.CurrentStepIndex = i
	return true
}

// CurrentStep returns the step the next turn will play, or nil when idle or
// complete. The returned step belongs to the loaded script and must not be
// modified.
func (p *Player) CurrentStep() *script.Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentStepLocked()
}

func (p *Player) currentStepLocked() *script.Step {
	if p.script == nil || p.session == nil {
		return nil
	}
	i := p.session.CurrentStepIndex
	if i < 0 || i >= len(p.script.Steps) {
		return nil
	}
	return &p.script.Steps[i]
}

// Hint suggests what the user could say next. ok is false when there is no
// current step or it expects no particular input.
func (p *Player) Hint() (hint string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.currentStepLocked()
	if st == nil || st.UserInput == "" {
		return "", false
	}
	return fmt.Sprintf(hintTemplate, st.UserInput), true
}

// IsActive reports whether a script is loaded.
func (p *Player) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.script != nil && p.session != nil
}

// IsComplete reports whether the loaded script has been played to the end.
func (p *Player) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.CurrentStepIndex >= len(p.script.Steps)
}

// Script returns the loaded script, or nil when idle.
func (p *Player) Script() *script.Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.script
}

// Session returns a copy of the live session. ok is false when idle.
func (p *Player) Session() (s Session, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Session{}, false
	}
	return p.session.clone(), true
}

// Summary digests the live session. ok is false when idle.
func (p *Player) Summary() (sum Summary, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil || p.script == nil {
		return Summary{}, false
	}
	s := p.session
	end := p.now()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return Summary{
		ScriptID:        s.ScriptID,
		SessionID:       s.ID,
		DurationSeconds: int(end.Sub(s.StartedAt) / time.Second),
		StepsCompleted:  len(s.CompletedSteps),
		TotalSteps:      len(p.script.Steps),
		Deviations:      len(s.Deviations),
		Progress:        p.progressLocked(),
	}, true
}
