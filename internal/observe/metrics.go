// Package observe provides the observability primitives shared by guion:
// OpenTelemetry metrics for script playback, tracing helpers, and a
// trace-aware structured logger.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to Prometheus so they can be scraped from /metrics. Tests
// should build their own [Metrics] with [NewMetrics] and a manual reader to
// avoid cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all guion metrics.
const meterName = "github.com/MrWong99/guion"

// Variant selection outcomes reported by [Metrics.RecordTurn].
const (
	SelectionRegex   = "regex"
	SelectionFuzzy   = "fuzzy"
	SelectionDefault = "default"
)

// Metrics holds the metric instruments for script playback. All fields are
// safe for concurrent use.
type Metrics struct {
	// Turns counts processed user turns. Attributes: script_id, matched, selection.
	Turns metric.Int64Counter

	// Deviations counts turns whose input did not match the expected line.
	Deviations metric.Int64Counter

	// MatchQuality records the 0–100 match quality of each turn.
	MatchQuality metric.Int64Histogram

	// TurnDuration records how long the player took to process a turn.
	TurnDuration metric.Float64Histogram

	// InvalidPatterns counts variant patterns skipped because they do not compile.
	InvalidPatterns metric.Int64Counter

	// DanglingNextSteps counts turns whose nextStepId named no step.
	DanglingNextSteps metric.Int64Counter

	// SessionsStarted and SessionsCompleted count session lifecycle events.
	SessionsStarted   metric.Int64Counter
	SessionsCompleted metric.Int64Counter

	// ActiveSessions tracks sessions that are loaded and not yet unloaded.
	ActiveSessions metric.Int64UpDownCounter
}

// qualityBuckets are histogram boundaries for the 0–100 match quality score.
var qualityBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// turnBuckets are histogram boundaries in seconds. Turns are pure CPU work
// over a handful of short strings.
var turnBuckets = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Turns, err = m.Int64Counter("guion.turns",
		metric.WithDescription("User turns processed by script, match outcome, and variant selection."),
	); err != nil {
		return nil, err
	}
	if met.Deviations, err = m.Int64Counter("guion.deviations",
		metric.WithDescription("Turns whose input did not match the expected line."),
	); err != nil {
		return nil, err
	}
	if met.MatchQuality, err = m.Int64Histogram("guion.match_quality",
		metric.WithDescription("Match quality (0-100) of each processed turn."),
		metric.WithExplicitBucketBoundaries(qualityBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("guion.turn.duration",
		metric.WithDescription("Time spent processing a single user turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(turnBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InvalidPatterns, err = m.Int64Counter("guion.invalid_patterns",
		metric.WithDescription("Variant patterns skipped because they failed to compile."),
	); err != nil {
		return nil, err
	}
	if met.DanglingNextSteps, err = m.Int64Counter("guion.dangling_next_steps",
		metric.WithDescription("Turns whose nextStepId referenced a step that does not exist."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("guion.sessions.started",
		metric.WithDescription("Sessions started by loading or resetting a script."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("guion.sessions.completed",
		metric.WithDescription("Sessions that reached the end of their script or were unloaded."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("guion.active_sessions",
		metric.WithDescription("Sessions currently loaded."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Call [InitProvider] first if the
// metrics should be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// TurnRecord describes one processed turn for [Metrics.RecordTurn].
type TurnRecord struct {
	ScriptID     string
	Matched      bool
	Selection    string
	MatchQuality int
	Duration     time.Duration
}

// RecordTurn records the counters and histograms for one processed turn.
func (m *Metrics) RecordTurn(ctx context.Context, r TurnRecord) {
	script := attribute.String("script_id", r.ScriptID)
	m.Turns.Add(ctx, 1, metric.WithAttributes(
		script,
		attribute.String("matched", strconv.FormatBool(r.Matched)),
		attribute.String("selection", r.Selection),
	))
	if !r.Matched {
		m.Deviations.Add(ctx, 1, metric.WithAttributes(script))
	}
	m.MatchQuality.Record(ctx, int64(r.MatchQuality), metric.WithAttributes(script))
	m.TurnDuration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(script))
}

// RecordInvalidPattern records a variant pattern that failed to compile.
func (m *Metrics) RecordInvalidPattern(ctx context.Context, scriptID, stepID string) {
	m.InvalidPatterns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("script_id", scriptID),
		attribute.String("step_id", stepID),
	))
}

// RecordDanglingNextStep records a nextStepId that named no step.
func (m *Metrics) RecordDanglingNextStep(ctx context.Context, scriptID, stepID string) {
	m.DanglingNextSteps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("script_id", scriptID),
		attribute.String("step_id", stepID),
	))
}

// SessionStarted records a new session and increments the active gauge.
func (m *Metrics) SessionStarted(ctx context.Context, scriptID string) {
	attrs := metric.WithAttributes(attribute.String("script_id", scriptID))
	m.SessionsStarted.Add(ctx, 1, attrs)
	m.ActiveSessions.Add(ctx, 1, attrs)
}

// SessionCompleted records a session reaching its end.
func (m *Metrics) SessionCompleted(ctx context.Context, scriptID string) {
	m.SessionsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("script_id", scriptID)))
}

// SessionEnded decrements the active gauge when a session is discarded.
func (m *Metrics) SessionEnded(ctx context.Context, scriptID string) {
	m.ActiveSessions.Add(ctx, -1, metric.WithAttributes(attribute.String("script_id", scriptID)))
}
