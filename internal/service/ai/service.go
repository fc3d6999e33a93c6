package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/telemetry"
)

// ErrNoChoices is returned when the upstream model answers without a message.
var ErrNoChoices = errors.New("completion returned no choices")

// Completer forwards a transcript to a hosted chat model and returns its first
// generated message. Implementations must not modify turns.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error)
	Model() string
}

// Service encapsulates the chat relay's upstream call.
type Service struct {
	completer Completer
	tokens    *TokenCounter
	metrics   *telemetry.RelayMetrics
	tracer    trace.Tracer
}

// Option customises a Service.
type Option func(*Service)

// WithTokenCounter logs and records the prompt size of every call.
func WithTokenCounter(tc *TokenCounter) Option {
	return func(s *Service) { s.tokens = tc }
}

// WithMetrics records call counts and latency.
func WithMetrics(m *telemetry.RelayMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new AI service instance
func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		tracer:    telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply forwards turns to the model and returns the first generated message.
func (s *Service) Reply(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	forwarded := append([]chat.Turn(nil), turns...)
	modelName := s.completer.Model()

	ctx, span := s.tracer.Start(ctx, "chat.complete", trace.WithAttributes(
		attribute.String("chat.model", modelName),
		attribute.Int("chat.turns", len(forwarded)),
	))
	defer span.End()

	if s.tokens != nil {
		if count, err := s.tokens.Count(forwarded); err != nil {
			log.Printf("[ai] token count unavailable: %v", err)
		} else {
			span.SetAttributes(attribute.Int("chat.prompt_tokens", count))
			s.metrics.RecordPromptTokens(ctx, modelName, count)
			log.Printf("[ai] forwarding %d turns (%d prompt tokens) to model=%s", len(forwarded), count, modelName)
		}
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, forwarded)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.Record(ctx, "chat", telemetry.OutcomeUpstreamError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return chat.Turn{}, fmt.Errorf("failed to complete chat: %w", err)
	}

	s.metrics.Record(ctx, "chat", telemetry.OutcomeOK, elapsed)
	log.Printf("[ai] generated reply model=%s, length=%d, took=%s", modelName, len(reply.Content), elapsed)
	return reply, nil
}
