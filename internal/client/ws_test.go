package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

// slowFirstReplyServer answers every frame with "reply to <last content>",
// holding back the very first answer by delay.
func slowFirstReplyServer(t *testing.T, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var frames, conns atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		for {
			var req chat.CompletionRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if frames.Add(1) == 1 {
				time.Sleep(delay)
			}
			last := req.Messages[len(req.Messages)-1]
			if err := conn.WriteJSON(chat.Turn{Role: chat.RoleAssistant, Content: "reply to " + last.Content}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func TestWSChatRecoversAfterTimeout(t *testing.T) {
	srv, conns := slowFirstReplyServer(t, 300*time.Millisecond)

	ws, err := DialWSChat(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	_, err = ws.Complete(ctx, []chat.Turn{{Role: chat.RoleUser, Content: "first"}})
	cancel()
	require.Error(t, err)

	// 等旧连接上迟到的回复发出
	time.Sleep(400 * time.Millisecond)

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := ws.Complete(ctx, []chat.Turn{{Role: chat.RoleUser, Content: "second"}})
	require.NoError(t, err)
	assert.Equal(t, "reply to second", reply.Content)
	assert.Eventually(t, func() bool { return conns.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestWSChatRedialsAfterClose(t *testing.T) {
	srv, conns := slowFirstReplyServer(t, 0)

	ws, err := DialWSChat(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := ws.Complete(ctx, []chat.Turn{{Role: chat.RoleUser, Content: "encore"}})
	require.NoError(t, err)
	assert.Equal(t, "reply to encore", reply.Content)
	assert.Eventually(t, func() bool { return conns.Load() == 2 }, time.Second, 10*time.Millisecond)
}
