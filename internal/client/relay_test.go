package client

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poet-chat/backend/internal/config"
	"github.com/zhouzirui/poet-chat/backend/internal/handler"
	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/model/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
)

type serverChat struct {
	err error
}

func (s serverChat) Reply(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	if s.err != nil {
		return chat.Turn{}, s.err
	}
	last := turns[len(turns)-1]
	return chat.Turn{Role: chat.RoleAssistant, Content: "echo: " + last.Content}, nil
}

type serverSpeech struct {
	clipName string
	clipType string
}

func (s *serverSpeech) Transcribe(ctx context.Context, req *speech.TranscriptionRequest) (*speech.TranscriptionResponse, error) {
	data, _ := io.ReadAll(req.Audio)
	s.clipName = req.Filename
	s.clipType = req.ContentType
	return &speech.TranscriptionResponse{Text: string(data)}, nil
}

func (s *serverSpeech) Synthesize(ctx context.Context, req *speech.SynthesisRequest) (*speech.SynthesisResponse, error) {
	return &speech.SynthesisResponse{Audio: []byte("mp3:" + req.Text), ContentType: speech.SynthesisContentType}, nil
}

func newServer(t *testing.T, chatSvc serverChat, speechSvc *serverSpeech) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Speech.MaxUploadBytes = 1 << 20
	srv := httptest.NewServer(handler.NewRouter(cfg, persona.NewMemoryStore(persona.Seed()), chatSvc, speechSvc))
	t.Cleanup(srv.Close)
	return srv
}

func TestRelayRoundTrip(t *testing.T) {
	speechSvc := &serverSpeech{}
	srv := newServer(t, serverChat{}, speechSvc)
	relay := NewRelay(srv.URL+"/", 5*time.Second)
	ctx := context.Background()

	p, err := relay.Persona(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Whomp", p.Name)

	reply, err := relay.Complete(ctx, []chat.Turn{
		{Role: chat.RoleSystem, Content: p.SystemPrompt},
		{Role: chat.RoleUser, Content: "Hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, reply.Role)
	assert.Equal(t, "echo: Hello", reply.Content)

	text, err := relay.Transcribe(ctx, speech.Clip{Data: []byte("spoken words")})
	require.NoError(t, err)
	assert.Equal(t, "spoken words", text)
	assert.Equal(t, "audio.webm", speechSvc.clipName)
	assert.Equal(t, "audio/webm", speechSvc.clipType)

	audio, err := relay.Synthesize(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, "mp3:Hello", string(audio))
}

func TestRelayErrors(t *testing.T) {
	srv := newServer(t, serverChat{err: errors.New("upstream down")}, &serverSpeech{})
	relay := NewRelay(srv.URL, 5*time.Second)
	ctx := context.Background()

	_, err := relay.Complete(ctx, []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}})
	var relayErr *RelayError
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, 500, relayErr.Status)
	assert.Equal(t, "Failed to process your request", relayErr.Message)

	_, err = relay.Synthesize(ctx, "")
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, 400, relayErr.Status)
	assert.Equal(t, "No text provided", relayErr.Message)
}

func TestWSChatRoundTrip(t *testing.T) {
	srv := newServer(t, serverChat{}, &serverSpeech{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, err := DialWSChat(ctx, srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	for _, text := range []string{"un", "deux"} {
		reply, err := ws.Complete(ctx, []chat.Turn{{Role: chat.RoleUser, Content: text}})
		require.NoError(t, err)
		assert.Equal(t, "echo: "+text, reply.Content)
	}
}

func TestWSChatRelayError(t *testing.T) {
	srv := newServer(t, serverChat{err: errors.New("upstream down")}, &serverSpeech{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, err := DialWSChat(ctx, srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	s := NewSession(whomp, ws, NewRelay(srv.URL, 5*time.Second))
	msg, err := s.Submit(ctx, "Hello")
	require.Error(t, err)
	assert.Equal(t, FallbackReply, msg.Content)
}
