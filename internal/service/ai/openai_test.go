package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAICompleterForwardsTranscript(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"ft:poet","choices":[{"index":0,"message":{"role":"assistant","content":"Les vagues"},"finish_reason":"stop"},{"index":1,"message":{"role":"assistant","content":"ignored"},"finish_reason":"stop"}]}`))
	})

	completer := NewOpenAICompleter(client, "ft:poet")
	reply, err := completer.Complete(context.Background(), []chat.Turn{
		{Role: chat.RoleSystem, Content: "Whomp"},
		{Role: chat.RoleUser, Content: "Hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, chat.Turn{Role: chat.RoleAssistant, Content: "Les vagues"}, reply)
	assert.Equal(t, "ft:poet", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Hello", got.Messages[1].Content)
}

func TestOpenAICompleterNoChoices(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"ft:poet","choices":[]}`))
	})

	_, err := NewOpenAICompleter(client, "ft:poet").Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestOpenAICompleterUpstreamError(t *testing.T) {
	client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	_, err := NewOpenAICompleter(client, "ft:poet").Complete(context.Background(), []chat.Turn{{Role: chat.RoleUser, Content: "hi"}})
	require.Error(t, err)

	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}
