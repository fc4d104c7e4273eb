package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/middleware"
	"github.com/feela-app/feela/backend/internal/model/persona"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/pkg/utils"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

// Handler delivers a reply as Server-Sent Events so that browser clients can
// show Feela "typing" while the model is consulted.
type Handler struct {
	chatSvc   *chatService.Service
	responder chatService.Responder
	feela     persona.Persona
	log       *zap.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, responder chatService.Responder, feela persona.Persona, log *zap.Logger) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		responder: responder,
		feela:     feela,
		log:       log,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string      `json:"event"`
	Username string      `json:"username,omitempty"`
	Content  string      `json:"content,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Finished bool        `json:"finished,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sess.Username, message); err != nil {
		if errors.Is(err, errStreamingUnsupported) {
			_ = utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		h.log.Warn("stream request failed", zap.String("username", sess.Username), zap.Error(err))
	}
}

// HandleStreamRequest records the exchange and streams start, message and
// end events for it.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, username, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errStreamingUnsupported
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := h.sendSSE(w, flusher, StreamResponse{
		Event:    "start",
		Username: username,
		Content:  h.feela.Name + " is typing…",
	}); err != nil {
		return err
	}

	userMsg, botMsg, err := h.chatSvc.Exchange(ctx, h.responder, username, userMessage)
	if err != nil {
		_ = h.sendSSE(w, flusher, StreamResponse{Event: "error", Error: "chat unavailable"})
		return err
	}

	if err := h.sendSSE(w, flusher, StreamResponse{
		Event:    "message",
		Username: username,
		Content:  botMsg.Content,
		Data: map[string]interface{}{
			"user": userMsg,
			"bot":  botMsg,
		},
	}); err != nil {
		return err
	}

	h.log.Debug("stream completed", zap.String("username", username), zap.String("kind", botMsg.Kind))
	return h.sendSSE(w, flusher, StreamResponse{Event: "end", Username: username, Finished: true})
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, resp StreamResponse) error {
	return utils.SendSSEEvent(w, flusher, resp.Event, resp)
}
