package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

const wsDefaultTimeout = 60 * time.Second

// WSChat talks to the chat relay over its websocket endpoint. One request is
// in flight at a time; frames are answered in order. A connection that fails
// a read or write is discarded, and the next call dials a fresh one, so a late
// reply is never paired with a later request.
type WSChat struct {
	url  string
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWSChat opens a websocket to the chat relay of the server at baseURL.
func DialWSChat(ctx context.Context, baseURL string) (*WSChat, error) {
	c := &WSChat{url: wsURL(baseURL)}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func wsURL(baseURL string) string {
	url := strings.TrimSuffix(baseURL, "/") + "/api/chat/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

func (c *WSChat) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// discard 关闭出错的连接，下次调用时重新建立
func (c *WSChat) discard() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Complete sends one frame and waits for its answer.
func (c *WSChat) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return chat.Turn{}, err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsDefaultTimeout)
	}
	c.conn.SetWriteDeadline(deadline)
	c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(chat.CompletionRequest{Messages: turns}); err != nil {
		c.discard()
		return chat.Turn{}, fmt.Errorf("write frame: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.discard()
		return chat.Turn{}, fmt.Errorf("read frame: %w", err)
	}

	var frame struct {
		chat.Turn
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return chat.Turn{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	if frame.Error != "" {
		return chat.Turn{}, &RelayError{Message: frame.Error}
	}
	return frame.Turn, nil
}

// Close sends a close frame and closes the connection.
func (c *WSChat) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
