package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/middleware"
	"github.com/feela-app/feela/backend/internal/model/chat"
	"github.com/feela-app/feela/backend/internal/model/persona"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 64 << 10
)

// SessionLookup reports whether a session is still live.
type SessionLookup interface {
	Lookup(id string) (chat.Session, bool)
}

// WebSocketHandler WebSocket聊天处理器，每个连接绑定一个登录会话
type WebSocketHandler struct {
	chatSvc   *chatService.Service
	responder chatService.Responder
	sessions  SessionLookup
	feela     persona.Persona
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, responder chatService.Responder, sessions SessionLookup, feela persona.Persona, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:   chatSvc,
		responder: responder,
		sessions:  sessions,
		feela:     feela,
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "please log in", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.log.With(zap.String("username", sess.Username), zap.String("session", sess.ID))
	log.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", map[string]string{
		"username": sess.Username,
		"welcome":  h.feela.Welcome(sess.Username),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if _, live := h.sessions.Lookup(sess.ID); !live {
			h.sendError(conn, "session ended, please log in again")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"),
				time.Now().Add(writeTimeout))
			return
		}

		h.handleMessage(ctx, conn, sess.Username, msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, username string, msg inboundMessage) {
	switch msg.Type {
	case "message":
		if msg.Text == "" {
			h.sendError(conn, "text is required")
			return
		}
		userMsg, botMsg, err := h.chatSvc.Exchange(ctx, h.responder, username, msg.Text)
		if err != nil {
			h.log.Error("websocket exchange failed", zap.String("username", username), zap.Error(err))
			h.sendError(conn, "chat unavailable")
			return
		}
		h.send(conn, "reply", map[string]chat.Message{"user": userMsg, "bot": botMsg})
	case "transcript":
		messages, err := h.chatSvc.Transcript(ctx, username)
		if err != nil {
			h.sendError(conn, "chat unavailable")
			return
		}
		h.send(conn, "transcript", messages)
	case "reset":
		if err := h.chatSvc.Reset(ctx, username); err != nil {
			h.sendError(conn, "chat unavailable")
			return
		}
		h.send(conn, "cleared", map[string]string{"message": "Chat history cleared for your account."})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind string, data interface{}) {
	payload, err := json.Marshal(outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		h.log.Error("websocket encode failed", zap.Error(err))
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.log.Debug("websocket write failed", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
