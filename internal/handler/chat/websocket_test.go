package chat

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/pkg/utils"
)

func dialChat(t *testing.T, svc ChatService) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(setupRouter(svc))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebSocketAnswersEachFrame(t *testing.T) {
	svc := &fakeChatService{reply: chat.Turn{Role: chat.RoleAssistant, Content: "vers libre"}}
	conn := dialChat(t, svc)

	for i := 0; i < 2; i++ {
		req := chat.CompletionRequest{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}}}
		require.NoError(t, conn.WriteJSON(req))

		var got chat.Turn
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, chat.RoleAssistant, got.Role)
		assert.Equal(t, "vers libre", got.Content)
	}
}

func TestWebSocketUpstreamError(t *testing.T) {
	svc := &fakeChatService{err: errors.New("rate limited")}
	conn := dialChat(t, svc)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"role":"user","content":"Hi"}]}`)))

	var got utils.ErrorBody
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MessageRelayFailed, got.Error)
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	svc := &fakeChatService{reply: chat.Turn{Role: chat.RoleAssistant, Content: "encore"}}
	conn := dialChat(t, svc)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	var failure utils.ErrorBody
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, MessageRelayFailed, failure.Error)

	require.NoError(t, conn.WriteJSON(chat.CompletionRequest{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "again"}}}))
	var got chat.Turn
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "encore", got.Content)
}

// blockingChatService holds every call until its context ends.
type blockingChatService struct {
	started  chan struct{}
	canceled chan struct{}
}

func (b *blockingChatService) Reply(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	close(b.started)
	<-ctx.Done()
	close(b.canceled)
	return chat.Turn{}, ctx.Err()
}

func TestWebSocketDisconnectCancelsUpstream(t *testing.T) {
	svc := &blockingChatService{started: make(chan struct{}), canceled: make(chan struct{})}
	conn := dialChat(t, svc)

	require.NoError(t, conn.WriteJSON(chat.CompletionRequest{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}}}))

	select {
	case <-svc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream call never started")
	}

	require.NoError(t, conn.Close())

	select {
	case <-svc.canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream call kept running after the client left")
	}
}
