package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Outcome labels for relay calls.
const (
	OutcomeOK            = "ok"
	OutcomeUpstreamError = "upstream_error"
)

// RelayMetrics counts relay calls and their upstream latency.
type RelayMetrics struct {
	requests     metric.Int64Counter
	latency      metric.Float64Histogram
	promptTokens metric.Int64Histogram
}

// NewRelayMetrics registers the relay instruments on the global meter
// provider. Instrument creation errors fall back to no-op instruments.
func NewRelayMetrics() *RelayMetrics {
	meter := otel.Meter(ServiceName)

	requests, err := meter.Int64Counter("relay.requests",
		metric.WithDescription("Relay calls forwarded upstream"))
	if err != nil {
		log.Printf("[telemetry] relay.requests counter: %v", err)
	}
	latency, err := meter.Float64Histogram("relay.upstream.duration",
		metric.WithDescription("Upstream round trip per relay call"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("[telemetry] relay.upstream.duration histogram: %v", err)
	}
	promptTokens, err := meter.Int64Histogram("chat.prompt.tokens",
		metric.WithDescription("Prompt size of forwarded chat transcripts"))
	if err != nil {
		log.Printf("[telemetry] chat.prompt.tokens histogram: %v", err)
	}

	return &RelayMetrics{requests: requests, latency: latency, promptTokens: promptTokens}
}

// Record notes one upstream call for the named relay operation.
func (m *RelayMetrics) Record(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

// RecordPromptTokens notes the token count of a forwarded prompt.
func (m *RelayMetrics) RecordPromptTokens(ctx context.Context, model string, tokens int) {
	if m == nil || m.promptTokens == nil {
		return
	}
	m.promptTokens.Record(ctx, int64(tokens), metric.WithAttributes(attribute.String("model", model)))
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}
