package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/pkg/utils"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
	wsMaxFrameSize = 1 << 20
	wsFrameBacklog = 8
)

// WebSocketHandler relays chat frames over a websocket. Every text frame is an
// independent CompletionRequest answered by exactly one frame, in order.
type WebSocketHandler struct {
	chatSvc  ChatService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc ChatService) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat-ws] upgrade failed: %v", err)
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	conn.SetReadLimit(wsMaxFrameSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// 读循环退出（对端断开）即取消进行中的上游调用
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan []byte, wsFrameBacklog)

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		defer cancel()
		h.readLoop(ctx, conn, frames)
	})
	wg.Go(func() {
		defer cancel()
		h.replyLoop(ctx, conn, frames)
	})
	wg.Go(func() {
		h.pingLoop(ctx, conn)
		// 解除读循环在 ReadMessage 上的阻塞
		conn.Close()
	})
	wg.Wait()
}

// readLoop hands text frames to replyLoop in arrival order and closes frames
// when the peer goes away.
func (h *WebSocketHandler) readLoop(ctx context.Context, conn *wsConn, frames chan<- []byte) {
	defer close(frames)

	for {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[chat-ws] read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// replyLoop answers frames one at a time.
func (h *WebSocketHandler) replyLoop(ctx context.Context, conn *wsConn, frames <-chan []byte) {
	for data := range frames {
		reply := h.relay(ctx, data)
		if ctx.Err() != nil {
			return
		}
		if err := conn.writeJSON(reply); err != nil {
			log.Printf("[chat-ws] write error: %v", err)
			return
		}
	}
}

func (h *WebSocketHandler) relay(ctx context.Context, frame []byte) any {
	var req chat.CompletionRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		log.Printf("[chat-ws] invalid frame: %v", err)
		return utils.ErrorBody{Error: MessageRelayFailed}
	}

	reply, err := h.chatSvc.Reply(ctx, req.Messages)
	if err != nil {
		log.Printf("[chat-ws] upstream error: %v", err)
		return utils.ErrorBody{Error: MessageRelayFailed}
	}
	return reply
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
