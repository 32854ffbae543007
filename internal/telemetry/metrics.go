package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's counters. Instruments that fail to initialize
// stay nil and their record methods become no-ops.
type Metrics struct {
	environment string

	pollApplied  metric.Int64Counter
	pollSkipped  metric.Int64Counter
	pollFailed   metric.Int64Counter
	timeFallback metric.Int64Counter
	queries      metric.Int64Counter
}

// NewMetrics creates the service counters on the provider's meter.
func NewMetrics(p *Provider) *Metrics {
	meter := p.Meter("showgate")
	m := &Metrics{environment: p.Environment()}

	if counter, err := meter.Int64Counter("showgate_config_poll_applied",
		metric.WithDescription("Remote data-source config changes applied"),
		metric.WithUnit("{poll}")); err == nil {
		m.pollApplied = counter
	}
	if counter, err := meter.Int64Counter("showgate_config_poll_skipped",
		metric.WithDescription("Remote data-source config polls with no change"),
		metric.WithUnit("{poll}")); err == nil {
		m.pollSkipped = counter
	}
	if counter, err := meter.Int64Counter("showgate_config_poll_failed",
		metric.WithDescription("Remote data-source config polls that failed"),
		metric.WithUnit("{poll}")); err == nil {
		m.pollFailed = counter
	}
	if counter, err := meter.Int64Counter("showgate_normalize_time_fallback",
		metric.WithDescription("Show payloads whose start time could not be parsed"),
		metric.WithUnit("{record}")); err == nil {
		m.timeFallback = counter
	}
	if counter, err := meter.Int64Counter("showgate_queries",
		metric.WithDescription("Unified queries served, by operation and provenance"),
		metric.WithUnit("{query}")); err == nil {
		m.queries = counter
	}
	return m
}

// PollApplied records a remote config change taking effect.
func (m *Metrics) PollApplied() { m.add(m.pollApplied) }

// PollSkipped records an unchanged remote config poll.
func (m *Metrics) PollSkipped() { m.add(m.pollSkipped) }

// PollFailed records a failed remote config poll.
func (m *Metrics) PollFailed(error) { m.add(m.pollFailed) }

// TimeFallback records a payload whose timestamp fell back to the clock.
func (m *Metrics) TimeFallback() { m.add(m.timeFallback) }

// Query records one served query with its operation and provenance labels.
func (m *Metrics) Query(operation, provenance string) {
	if m == nil || m.queries == nil {
		return
	}
	m.queries.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("environment", m.environment),
		attribute.String("operation", operation),
		attribute.String("provenance", provenance),
	))
}

func (m *Metrics) add(counter metric.Int64Counter) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("environment", m.environment),
	))
}
