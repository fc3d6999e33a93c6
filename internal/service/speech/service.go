package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/poet-chat/backend/internal/config"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
	"github.com/zhouzirui/poet-chat/backend/internal/telemetry"
)

var (
	ErrNoAudio   = errors.New("no audio provided")
	ErrEmptyText = errors.New("no text provided")
)

// Service 语音服务核心业务逻辑，转发至 OpenAI 的转写与合成接口。
type Service struct {
	client  *openai.Client
	cfg     config.SpeechConfig
	metrics *telemetry.RelayMetrics
	tracer  trace.Tracer
}

// NewService 创建语音服务实例
func NewService(client *openai.Client, cfg config.SpeechConfig, metrics *telemetry.RelayMetrics) *Service {
	return &Service{
		client:  client,
		cfg:     cfg,
		metrics: metrics,
		tracer:  telemetry.Tracer(),
	}
}

// Transcribe 语音转文字
func (s *Service) Transcribe(ctx context.Context, req *speech.TranscriptionRequest) (*speech.TranscriptionResponse, error) {
	if req == nil || req.Audio == nil {
		return nil, ErrNoAudio
	}

	filename := req.Filename
	if filename == "" {
		filename = speech.DefaultClipName
	}

	ctx, span := s.tracer.Start(ctx, "speech.transcribe", trace.WithAttributes(
		attribute.String("speech.model", s.cfg.TranscriptionModel),
		attribute.String("speech.filename", filename),
	))
	defer span.End()

	start := time.Now()
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   req.Audio,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.fail(ctx, span, "transcribe", elapsed, err)
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}

	s.metrics.Record(ctx, "transcribe", telemetry.OutcomeOK, elapsed)
	log.Printf("[speech] transcribed %s, length=%d, took=%s", filename, len(resp.Text), elapsed)
	return &speech.TranscriptionResponse{Text: resp.Text}, nil
}

// Synthesize 文字转语音，返回完整的音频字节。
func (s *Service) Synthesize(ctx context.Context, req *speech.SynthesisRequest) (*speech.SynthesisResponse, error) {
	if req == nil || req.Text == "" {
		return nil, ErrEmptyText
	}

	ctx, span := s.tracer.Start(ctx, "speech.synthesize", trace.WithAttributes(
		attribute.String("speech.model", s.cfg.SpeechModel),
		attribute.String("speech.voice", s.cfg.Voice),
		attribute.Int("speech.text_length", len(req.Text)),
	))
	defer span.End()

	start := time.Now()
	raw, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.SpeechModel),
		Voice:          openai.SpeechVoice(s.cfg.Voice),
		Input:          req.Text,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		s.fail(ctx, span, "synthesize", time.Since(start), err)
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	defer raw.Close()

	audio, err := io.ReadAll(raw)
	elapsed := time.Since(start)
	if err != nil {
		s.fail(ctx, span, "synthesize", elapsed, err)
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}

	s.metrics.Record(ctx, "synthesize", telemetry.OutcomeOK, elapsed)
	log.Printf("[speech] synthesized %d chars into %d bytes, took=%s", len(req.Text), len(audio), elapsed)
	return &speech.SynthesisResponse{Audio: audio, ContentType: speech.SynthesisContentType}, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, operation string, elapsed time.Duration, err error) {
	s.metrics.Record(ctx, operation, telemetry.OutcomeUpstreamError, elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, operation+" failed")
}

// ProviderMessage extracts the message the upstream API attached to err, or
// returns "" when the failure carried none.
func ProviderMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
