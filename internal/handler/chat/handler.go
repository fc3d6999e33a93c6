package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/pkg/utils"
)

// MessageRelayFailed is the only error body the chat relay ever returns.
const MessageRelayFailed = "Failed to process your request"

// ChatService 抽象聊天中继的上游调用，便于测试与替换实现
type ChatService interface {
	Reply(ctx context.Context, turns []chat.Turn) (chat.Turn, error)
}

// Handler 聊天中继的HTTP处理器
type Handler struct {
	chatSvc ChatService
	ws      *WebSocketHandler
}

// New 创建聊天处理器
func New(chatSvc ChatService) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		ws:      NewWebSocketHandler(chatSvc),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.ws.handleWebSocket)
}

// handleChat 将消息序列原样转发给模型，返回第一条生成的消息
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("[chat] invalid request body: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, MessageRelayFailed)
		return
	}

	reply, err := h.chatSvc.Reply(r.Context(), payload.Messages)
	if err != nil {
		log.Printf("[chat] upstream error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, MessageRelayFailed)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}
