package player_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/guion/internal/observe"
	"github.com/MrWong99/guion/internal/player"
	"github.com/MrWong99/guion/internal/script"
)

// fakeClock is a manually advanced clock for deterministic timestamps.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func greetingScript() *script.Script {
	return &script.Script{
		ID:   "saludo",
		Name: "Saludo",
		Steps: []script.Step{
			{ID: "S0", UserInput: "Hola", AssistantResponse: "¡Hola! ¿Qué tal?", NextStepID: "S1"},
			{ID: "S1", UserInput: "Adiós", AssistantResponse: "¡Hasta luego!"},
		},
	}
}

func newPlayer(t *testing.T, s *script.Script, opts ...player.Option) *player.Player {
	t.Helper()
	p := player.New(opts...)
	p.Load(s)
	return p
}

func TestProcessInput_TwoStepScript(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, greetingScript())

	res := p.ProcessInput("Hola")
	if !res.Matched {
		t.Error("first turn: Matched=false, want true")
	}
	if res.IsComplete {
		t.Error("first turn: IsComplete=true, want false")
	}
	if res.Response != "¡Hola! ¿Qué tal?" {
		t.Errorf("first turn: Response=%q", res.Response)
	}
	if res.MatchQuality != 100 {
		t.Errorf("first turn: MatchQuality=%d, want 100", res.MatchQuality)
	}
	if got := p.Progress(); got != 50 {
		t.Errorf("Progress after first turn = %d, want 50", got)
	}

	res = p.ProcessInput("Adiós")
	if !res.Matched || !res.IsComplete {
		t.Errorf("second turn: Matched=%v IsComplete=%v, want both true", res.Matched, res.IsComplete)
	}
	if got := p.Progress(); got != 100 {
		t.Errorf("Progress after second turn = %d, want 100", got)
	}
	if !p.IsComplete() {
		t.Error("IsComplete() = false after the last step")
	}
	if p.CurrentStep() != nil {
		t.Error("CurrentStep() should be nil once complete")
	}
}

func TestProcessInput_NoScript(t *testing.T) {
	t.Parallel()

	p := player.New()
	res := p.ProcessInput("Hola")
	if res.Response != player.NoScriptMessage {
		t.Errorf("Response = %q, want %q", res.Response, player.NoScriptMessage)
	}
	if res.Matched || res.IsComplete {
		t.Errorf("Matched=%v IsComplete=%v, want both false", res.Matched, res.IsComplete)
	}
	if p.Progress() != 0 {
		t.Errorf("Progress() = %d, want 0", p.Progress())
	}
}

func TestProcessInput_AfterCompletion(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newPlayer(t, &script.Script{ID: "uno", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "¡Hola!"},
	}}, player.WithClock(clock.Now))

	if res := p.ProcessInput("Hola"); !res.IsComplete {
		t.Fatal("single step script should complete after one turn")
	}
	first, _ := p.Session()

	clock.Advance(time.Minute)
	res := p.ProcessInput("otra cosa")
	if res.Response != player.CompleteMessage || !res.IsComplete {
		t.Errorf("got %+v, want completion message with IsComplete", res)
	}

	s, _ := p.Session()
	if s.CompletedAt == nil || !s.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("CompletedAt changed from %v to %v", first.CompletedAt, s.CompletedAt)
	}
	if len(s.Deviations) != 0 {
		t.Errorf("turns after completion must not record deviations, got %d", len(s.Deviations))
	}
}

func TestProcessInput_InvalidPatternFallsBackToDefault(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "roto", Steps: []script.Step{
		{
			ID:                "a",
			UserInput:         "Hola",
			AssistantResponse: "Respuesta por defecto",
			Variants:          []script.Variant{{Pattern: "(", Response: "nunca"}},
		},
	}})

	res := p.ProcessInput("algo distinto")
	if res.Response != "Respuesta por defecto" {
		t.Errorf("Response = %q, want the step default", res.Response)
	}
	if res.Selection != player.SelectionDefault {
		t.Errorf("Selection = %q, want %q", res.Selection, player.SelectionDefault)
	}
}

func TestProcessInput_InvalidPatternNeverSelected(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "pago", Steps: []script.Step{
		{
			ID:                "pago",
			UserInput:         "Quiero pagar",
			AssistantResponse: "¿Cómo quiere pagar?",
			Variants: []script.Variant{
				{Pattern: "(pagar con tarjeta", Response: "Pase la tarjeta, por favor."},
			},
		},
	}})

	res := p.ProcessInput("pagar con tarjeta")
	if res.Response != "¿Cómo quiere pagar?" {
		t.Errorf("Response = %q, want the step default", res.Response)
	}
	if res.Selection != player.SelectionDefault {
		t.Errorf("Selection = %q, want %q", res.Selection, player.SelectionDefault)
	}
}

func TestProcessInput_RegexVariantBeatsExpectedLine(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "e2e", Steps: []script.Step{
		{
			ID:                "a",
			UserInput:         "Sí",
			AssistantResponse: "¡Genial!",
			Variants:          []script.Variant{{Pattern: "no", Response: "Entendido, lo dejamos"}},
		},
	}})

	res := p.ProcessInput("no quiero")
	if res.Response != "Entendido, lo dejamos" {
		t.Errorf("Response = %q, want the variant reply", res.Response)
	}
	if res.Matched {
		t.Error("Matched = true, want false: the input did not match \"Sí\"")
	}
	if !res.IsComplete {
		t.Error("IsComplete = false, want true after the only step")
	}
	if res.Selection != player.SelectionRegex || res.MatchQuality != 100 {
		t.Errorf("Selection=%q MatchQuality=%d, want regex with 100", res.Selection, res.MatchQuality)
	}
}

func TestProcessInput_FirstRegexMatchWins(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "orden", Steps: []script.Step{
		{
			ID:                "a",
			AssistantResponse: "default",
			Variants: []script.Variant{
				{Pattern: "crema", Response: "A", AudioFile: "a.mp3"},
				{Pattern: "crema facial", Response: "B"},
			},
		},
	}})

	res := p.ProcessInput("Quiero una CREMA facial")
	if res.Response != "A" || res.AudioFile != "a.mp3" {
		t.Errorf("got %q (%q), want the first matching variant A (a.mp3)", res.Response, res.AudioFile)
	}
}

func TestProcessInput_BestFuzzyVariant(t *testing.T) {
	t.Parallel()

	steps := []script.Step{
		{
			ID:                "pago",
			UserInput:         "Quiero pagar",
			AssistantResponse: "¿Cómo quieres pagar?",
			AudioFile:         "pago.mp3",
			Variants: []script.Variant{
				{Pattern: "^efectivo$", Response: "Pago en efectivo"},
				{Pattern: "^tarjeta$", Response: "Pago con tarjeta", AudioFile: "tarjeta.mp3"},
			},
		},
	}

	p := newPlayer(t, &script.Script{ID: "pago", Steps: steps})
	res := p.ProcessInput("con tarjta")
	if res.Selection != player.SelectionFuzzy {
		t.Fatalf("Selection = %q, want fuzzy", res.Selection)
	}
	if res.Response != "Pago con tarjeta" || res.AudioFile != "tarjeta.mp3" {
		t.Errorf("got %q (%q), want the tarjeta variant", res.Response, res.AudioFile)
	}
	if res.MatchQuality != 50 {
		t.Errorf("MatchQuality = %d, want 50", res.MatchQuality)
	}

	// With a floor above the best fuzzy score the step default is kept.
	p = newPlayer(t, &script.Script{ID: "pago", Steps: steps}, player.WithVariantFloor(60))
	res = p.ProcessInput("con tarjta")
	if res.Selection != player.SelectionDefault || res.Response != "¿Cómo quieres pagar?" || res.AudioFile != "pago.mp3" {
		t.Errorf("got %+v, want the step default", res)
	}
	if res.MatchQuality != 50 {
		t.Errorf("MatchQuality = %d, want 50 from the best variant score", res.MatchQuality)
	}
}

func TestProcessInput_ZeroScoreVariantsKeepDefault(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "x", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "default",
			Variants: []script.Variant{{Pattern: "^zzz$", Response: "zzz"}}},
	}})
	res := p.ProcessInput("Hola")
	if res.Response != "default" || res.Selection != player.SelectionDefault {
		t.Errorf("got %q via %q, want default", res.Response, res.Selection)
	}
}

func TestProcessInputThreshold(t *testing.T) {
	t.Parallel()

	s := &script.Script{ID: "x", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "uno"},
		{ID: "b", UserInput: "Hola", AssistantResponse: "dos"},
	}}
	p := newPlayer(t, s)

	if res := p.ProcessInputThreshold("Hoka", 100); res.Matched {
		t.Error("threshold 100: near miss should not match")
	}
	if res := p.ProcessInputThreshold("Hoka", 70); !res.Matched || res.MatchQuality != 75 {
		t.Errorf("threshold 70: got Matched=%v quality=%d, want true and 75", res.Matched, res.MatchQuality)
	}
}

func TestTune(t *testing.T) {
	t.Parallel()

	s := &script.Script{ID: "x", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "uno"},
		{ID: "b", UserInput: "Hola", AssistantResponse: "dos"},
	}}
	p := newPlayer(t, s, player.WithThreshold(100))

	if res := p.ProcessInput("Hoka"); res.Matched {
		t.Error("threshold 100: near miss should not match")
	}
	p.Tune(70, 0)
	if res := p.ProcessInput("Hoka"); !res.Matched {
		t.Error("after Tune(70): near miss should match")
	}
	if sess, _ := p.Session(); len(sess.CompletedSteps) != 2 {
		t.Errorf("Tune must keep the session, completed = %d", len(sess.CompletedSteps))
	}
}

func TestProcessInput_StepWithoutExpectedInput(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "x", Steps: []script.Step{
		{ID: "intro", AssistantResponse: "Bienvenida"},
		{ID: "b", UserInput: "Hola", AssistantResponse: "dos"},
	}})

	res := p.ProcessInput("")
	if res.Matched || res.MatchQuality != 0 {
		t.Errorf("got Matched=%v MatchQuality=%d, want false and 0", res.Matched, res.MatchQuality)
	}
	s, _ := p.Session()
	if len(s.Deviations) != 0 {
		t.Errorf("steps without an expected line must not record deviations, got %d", len(s.Deviations))
	}
	if s.CurrentStepIndex != 1 {
		t.Errorf("CurrentStepIndex = %d, want 1", s.CurrentStepIndex)
	}
}

func TestDeviations_AccumulateOnLoop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newPlayer(t, &script.Script{ID: "bucle", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "¿Perdona?", NextStepID: "a"},
	}}, player.WithClock(clock.Now))

	inputs := []string{"qqq", "zzz", "www"}
	for _, in := range inputs {
		clock.Advance(time.Second)
		if res := p.ProcessInput(in); res.Matched || res.IsComplete {
			t.Fatalf("input %q: Matched=%v IsComplete=%v, want both false", in, res.Matched, res.IsComplete)
		}
	}

	s, _ := p.Session()
	if len(s.Deviations) != len(inputs) {
		t.Fatalf("recorded %d deviations, want %d", len(s.Deviations), len(inputs))
	}
	for i, d := range s.Deviations {
		if d.StepID != "a" || d.UserInput != inputs[i] || d.ExpectedInput != "Hola" {
			t.Errorf("deviation[%d] = %+v", i, d)
		}
		if i > 0 && !d.Timestamp.After(s.Deviations[i-1].Timestamp) {
			t.Errorf("deviation[%d] timestamp %v not after previous", i, d.Timestamp)
		}
	}
	if len(s.CompletedSteps) != 1 {
		t.Errorf("CompletedSteps has %d entries, want 1", len(s.CompletedSteps))
	}
	if p.Progress() != 100 {
		t.Errorf("Progress() = %d, want 100", p.Progress())
	}
}

func TestProcessInput_UnknownNextStepStays(t *testing.T) {
	buf := captureLogs(t)

	p := newPlayer(t, &script.Script{ID: "typo", Steps: []script.Step{
		{ID: "a", UserInput: "Hola", AssistantResponse: "uno", NextStepID: "bb"},
		{ID: "b", AssistantResponse: "dos"},
	}})

	res := p.ProcessInput("Hola")
	if res.IsComplete {
		t.Error("IsComplete = true, want false")
	}
	if st := p.CurrentStep(); st == nil || st.ID != "a" {
		t.Errorf("CurrentStep() = %+v, want step a", st)
	}
	if !strings.Contains(buf.String(), "nextStepId does not exist") {
		t.Errorf("expected a warning about the unknown nextStepId, got logs: %s", buf.String())
	}
}

func TestSkipToStep(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, greetingScript())

	if p.SkipToStep("missing") {
		t.Error("SkipToStep(missing) = true, want false")
	}
	if s, _ := p.Session(); s.CurrentStepIndex != 0 {
		t.Errorf("CurrentStepIndex = %d after failed skip, want 0", s.CurrentStepIndex)
	}

	if !p.SkipToStep("S1") {
		t.Fatal("SkipToStep(S1) = false, want true")
	}
	s, _ := p.Session()
	if len(s.CompletedSteps) != 0 || len(s.Deviations) != 0 {
		t.Errorf("skip must not touch history, got %+v", s)
	}

	res := p.ProcessInput("Adiós")
	if res.StepID != "S1" || res.Response != "¡Hasta luego!" || !res.IsComplete {
		t.Errorf("after skip got %+v, want S1 reply and completion", res)
	}

	if player.New().SkipToStep("S1") {
		t.Error("SkipToStep on an idle player = true, want false")
	}
}

func TestUnload(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, greetingScript())
	if !p.IsActive() {
		t.Fatal("IsActive() = false after Load")
	}
	p.Unload()

	if p.CurrentStep() != nil {
		t.Error("CurrentStep() should be nil after Unload")
	}
	if p.IsActive() {
		t.Error("IsActive() = true after Unload")
	}
	if p.Script() != nil {
		t.Error("Script() should be nil after Unload")
	}
	if _, ok := p.Summary(); ok {
		t.Error("Summary() ok=true after Unload")
	}

	p.Unload()
}

func TestUnload_EarlyExitCountsAsCompletion(t *testing.T) {
	t.Parallel()

	m, sums := newTestMetrics(t)
	p := newPlayer(t, greetingScript(), player.WithMetrics(m))
	p.ProcessInput("Hola")
	p.Load(nil)

	if p.IsActive() {
		t.Error("Load(nil) should unload")
	}
	got := sums()
	if got["guion.sessions.completed"] != 1 {
		t.Errorf("sessions completed = %d, want 1 for an early unload", got["guion.sessions.completed"])
	}
	if got["guion.active_sessions"] != 0 {
		t.Errorf("active sessions = %d, want 0", got["guion.active_sessions"])
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	ids := []string{"s-1", "s-2"}
	p := newPlayer(t, greetingScript(), player.WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	p.ProcessInput("nada que ver")

	before, _ := p.Session()
	if before.ID != "s-1" || len(before.Deviations) != 1 {
		t.Fatalf("before reset: %+v", before)
	}

	p.Reset()
	after, _ := p.Session()
	if after.ID != "s-2" {
		t.Errorf("session ID = %q, want s-2", after.ID)
	}
	if after.CurrentStepIndex != 0 || len(after.Deviations) != 0 || len(after.CompletedSteps) != 0 {
		t.Errorf("reset session not fresh: %+v", after)
	}
	if p.Script() == nil || p.Script().ID != "saludo" {
		t.Error("Reset must keep the same script")
	}

	idle := player.New()
	idle.Reset()
	if idle.IsActive() {
		t.Error("Reset on an idle player must not activate it")
	}
}

func TestLoad_ReplacesSession(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, greetingScript())
	p.ProcessInput("qqq")

	other := &script.Script{ID: "otro", Steps: []script.Step{{ID: "x", AssistantResponse: "hola"}}}
	p.Load(other)

	s, ok := p.Session()
	if !ok {
		t.Fatal("Session() ok=false after Load")
	}
	if s.ScriptID != "otro" || len(s.Deviations) != 0 || s.CurrentStepIndex != 0 {
		t.Errorf("Load did not start a fresh session: %+v", s)
	}
}

func TestLoad_EmptyScriptStartsComplete(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newPlayer(t, &script.Script{ID: "vacio"}, player.WithClock(clock.Now))

	s, ok := p.Session()
	if !ok {
		t.Fatal("Session() ok=false after Load")
	}
	if s.CompletedAt == nil || !s.CompletedAt.Equal(clock.Now()) {
		t.Errorf("CompletedAt = %v, want %v", s.CompletedAt, clock.Now())
	}
	if !p.IsComplete() {
		t.Error("IsComplete() = false for a script without steps")
	}

	clock.Advance(time.Minute)
	res := p.ProcessInput("hola")
	if !res.IsComplete || res.Response != player.CompleteMessage {
		t.Errorf("ProcessInput = %+v, want the completion reply", res)
	}
	s, _ = p.Session()
	if !s.CompletedAt.Equal(clock.Now().Add(-time.Minute)) {
		t.Errorf("CompletedAt moved to %v", s.CompletedAt)
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, &script.Script{ID: "x", Steps: []script.Step{
		{ID: "intro", AssistantResponse: "Bienvenida"},
		{ID: "b", UserInput: "Quiero una crema", AssistantResponse: "Claro"},
	}})

	if _, ok := p.Hint(); ok {
		t.Error("Hint() ok=true for a step without expected input")
	}
	p.ProcessInput("")

	hint, ok := p.Hint()
	if !ok {
		t.Fatal("Hint() ok=false, want a suggestion")
	}
	if !strings.Contains(hint, `"Quiero una crema"`) {
		t.Errorf("Hint() = %q, want it to quote the expected input", hint)
	}

	if _, ok := player.New().Hint(); ok {
		t.Error("Hint() ok=true on an idle player")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := newPlayer(t, greetingScript(), player.WithClock(clock.Now), player.WithIDGenerator(func() string { return "sess" }))

	clock.Advance(30 * time.Second)
	p.ProcessInput("qqq")

	sum, ok := p.Summary()
	if !ok {
		t.Fatal("Summary() ok=false")
	}
	want := player.Summary{
		ScriptID:        "saludo",
		SessionID:       "sess",
		DurationSeconds: 30,
		StepsCompleted:  1,
		TotalSteps:      2,
		Deviations:      1,
		Progress:        50,
	}
	if sum != want {
		t.Errorf("Summary() = %+v, want %+v", sum, want)
	}

	clock.Advance(60*time.Second + 900*time.Millisecond)
	p.ProcessInput("Adiós")
	clock.Advance(time.Hour)

	sum, _ = p.Summary()
	if sum.DurationSeconds != 90 {
		t.Errorf("DurationSeconds = %d, want 90 (frozen at completion)", sum.DurationSeconds)
	}
	if sum.Progress != 100 {
		t.Errorf("Progress = %d, want 100", sum.Progress)
	}
}

func TestOnResponse(t *testing.T) {
	t.Parallel()

	trigger := map[string]any{"type": "navigate", "page": "/carrito"}
	actions := []any{"open-cart"}
	p := newPlayer(t, &script.Script{ID: "x", Steps: []script.Step{
		{ID: "a", AssistantResponse: "Abriendo el carrito", Trigger: trigger, Actions: actions},
	}})

	var gotResponse string
	var gotTrigger any
	var gotActions []any
	calls := 0
	p.OnResponse(func(response string, trig any, acts []any) {
		calls++
		gotResponse, gotTrigger, gotActions = response, trig, acts
		// Listeners may call back into the player.
		_ = p.Progress()
	})

	res := p.ProcessInput("lo que sea")
	if calls != 1 {
		t.Fatalf("listener called %d times, want 1", calls)
	}
	if gotResponse != "Abriendo el carrito" {
		t.Errorf("listener response = %q", gotResponse)
	}
	if m, ok := gotTrigger.(map[string]any); !ok || m["page"] != "/carrito" {
		t.Errorf("listener trigger = %#v", gotTrigger)
	}
	if len(gotActions) != 1 || gotActions[0] != "open-cart" {
		t.Errorf("listener actions = %#v", gotActions)
	}
	if res.Trigger == nil || len(res.Actions) != 1 {
		t.Errorf("result should carry trigger and actions, got %+v", res)
	}

	p.ProcessInput("otra vez")
	if calls != 1 {
		t.Errorf("listener must not run once the script is complete, got %d calls", calls)
	}
}

func TestSession_IsSnapshot(t *testing.T) {
	t.Parallel()

	p := newPlayer(t, greetingScript())
	p.ProcessInput("qqq")

	s, _ := p.Session()
	s.CompletedSteps["otro"] = struct{}{}
	s.Deviations[0].UserInput = "cambiado"

	again, _ := p.Session()
	if len(again.CompletedSteps) != 1 || again.Deviations[0].UserInput != "qqq" {
		t.Errorf("mutating a snapshot changed live state: %+v", again)
	}
}

func TestShared(t *testing.T) {
	t.Parallel()

	if player.Shared() != player.Shared() {
		t.Error("Shared() returned different players")
	}
}

// newTestMetrics returns metrics backed by a manual reader and a function
// that sums every int64 counter by metric name.
func newTestMetrics(t *testing.T) (*observe.Metrics, func() map[string]int64) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, func() map[string]int64 {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("Collect: %v", err)
		}
		sums := map[string]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, met := range sm.Metrics {
				if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
					for _, dp := range sum.DataPoints {
						sums[met.Name] += dp.Value
					}
				}
			}
		}
		return sums
	}
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	m, collect := newTestMetrics(t)
	p := newPlayer(t, greetingScript(), player.WithMetrics(m))
	p.ProcessInput("Hola")
	p.ProcessInput("qqq")
	p.Unload()

	sums := collect()
	want := map[string]int64{
		"guion.turns":              2,
		"guion.deviations":         1,
		"guion.sessions.started":   1,
		"guion.sessions.completed": 1,
		"guion.active_sessions":    0,
	}
	for name, v := range want {
		if sums[name] != v {
			t.Errorf("%s = %d, want %d", name, sums[name], v)
		}
	}
}

// captureLogs redirects the default slog logger to a buffer. Tests using it
// must not run in parallel.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}
