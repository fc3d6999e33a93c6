package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
)

// FallbackReply is appended in place of an assistant reply when the chat relay fails.
const FallbackReply = "Sorry, I encountered an error. Please try again."

var (
	ErrBusy         = errors.New("another request is in progress")
	ErrEmptyInput   = errors.New("input is empty")
	ErrNotRecording = errors.New("not recording")
)

// State 会话所处的阶段
type State string

const (
	StateIdle                  State = "idle"
	StateRecording             State = "recording"
	StateAwaitingTranscription State = "awaiting-transcription"
	StateAwaitingCompletion    State = "awaiting-completion"
)

// Completer sends a turn sequence to a chat relay.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error)
}

// SpeechRelay transcribes clips and speaks text.
type SpeechRelay interface {
	Transcribe(ctx context.Context, clip speech.Clip) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Session 持有一次对话的全部历史，并保证同一时刻只有一个上游请求
type Session struct {
	mu         sync.Mutex
	state      State
	transcript *chat.Transcript
	input      string

	chat   Completer
	speech SpeechRelay
}

// NewSession starts a session whose transcript opens with systemPrompt.
func NewSession(systemPrompt string, chatRelay Completer, speechRelay SpeechRelay) *Session {
	return &Session{
		state:      StateIdle,
		transcript: chat.NewTranscript(systemPrompt),
		chat:       chatRelay,
		speech:     speechRelay,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns every message, the system message included.
func (s *Session) Transcript() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Visible returns the messages a user sees.
func (s *Session) Visible() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Visible()
}

// Input returns the text the last transcription left in the input box.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// StartRecording moves idle → recording.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}
	s.state = StateRecording
	return nil
}

// StopRecording submits the captured clip for transcription. On success the
// recognised text becomes the pending input; the session returns to idle
// either way.
func (s *Session) StopRecording(ctx context.Context, clip speech.Clip) (string, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return "", ErrNotRecording
	}
	s.state = StateAwaitingTranscription
	s.mu.Unlock()

	text, err := s.speech.Transcribe(ctx, clip.Normalized())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	s.input = text
	return text, nil
}

// Submit appends a user message and asks the chat relay for a reply. The
// returned message is the one appended after the user's: the assistant reply,
// or FallbackReply together with the relay error.
func (s *Session) Submit(ctx context.Context, text string) (chat.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return chat.Message{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return chat.Message{}, ErrBusy
	}
	s.transcript.Append(chat.NewMessage(chat.RoleUser, content))
	turns := s.transcript.Turns()
	s.input = ""
	s.state = StateAwaitingCompletion
	s.mu.Unlock()

	reply, err := s.chat.Complete(ctx, turns)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle

	if err != nil {
		fallback := chat.NewMessageWithPrefix("error", chat.RoleAssistant, FallbackReply)
		s.transcript.Append(fallback)
		return fallback, fmt.Errorf("failed to get response: %w", err)
	}

	msg := chat.NewMessage(chat.RoleAssistant, reply.Content)
	s.transcript.Append(msg)
	return msg, nil
}

// Speak synthesises text through the speech relay. It does not change state.
func (s *Session) Speak(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	audio, err := s.speech.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	return audio, nil
}

// LastReply returns the newest assistant message.
func (s *Session) LastReply() (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}
