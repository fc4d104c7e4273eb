package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/middleware"
	"github.com/feela-app/feela/backend/internal/model/chat"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	responder chatService.Responder
	log       *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, responder chatService.Responder, log *zap.Logger) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		responder: responder,
		log:       log,
	}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载登录校验
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/transcript", h.handleTranscript)
	r.Delete("/chat/transcript", h.handleReset)
	r.Post("/chat/messages", h.handleSendMessage)
}

type transcriptResponse struct {
	Username string         `json:"username"`
	Messages []chat.Message `json:"messages"`
}

type exchangeResponse struct {
	User chat.Message `json:"user"`
	Bot  chat.Message `json:"bot"`
}

// handleTranscript 返回当前用户的完整对话
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), sess.Username)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	_ = utils.RespondJSON(w, http.StatusOK, transcriptResponse{Username: sess.Username, Messages: messages})
}

// handleSendMessage 记录用户消息并返回 Feela 的回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	userMsg, botMsg, err := h.chatSvc.Exchange(r.Context(), h.responder, sess.Username, payload.Text)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.log.Debug("exchange recorded",
		zap.String("username", sess.Username),
		zap.String("kind", botMsg.Kind),
		zap.String("mood", botMsg.Mood),
	)
	_ = utils.RespondJSON(w, http.StatusOK, exchangeResponse{User: userMsg, Bot: botMsg})
}

// handleReset 清空当前用户的对话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	if err := h.chatSvc.Reset(r.Context(), sess.Username); err != nil {
		h.respondServiceError(w, err)
		return
	}

	_ = utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "cleared",
		"message": "Chat history cleared for your account.",
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrUnknownUser), errors.Is(err, chatService.ErrUsernameRequired):
		_ = utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("chat service error", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "chat unavailable")
	}
}
