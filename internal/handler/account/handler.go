package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/middleware"
	"github.com/feela-app/feela/backend/internal/model/persona"
	accountService "github.com/feela-app/feela/backend/internal/service/account"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/internal/service/session"
	"github.com/feela-app/feela/backend/pkg/utils"
)

const (
	msgFillBothFields     = "Please fill both fields."
	msgUsernameTaken      = "That username is already taken."
	msgInvalidCredentials = "Invalid username or password"
)

// Handler 账号注册、登录与登出的HTTP处理器
type Handler struct {
	accounts   *accountService.Service
	chats      *chatService.Service
	sessions   *session.Manager
	feela      persona.Persona
	cookieName string
	validate   *validator.Validate
	log        *zap.Logger
}

// New 创建账号处理器
func New(accounts *accountService.Service, chats *chatService.Service, sessions *session.Manager, feela persona.Persona, cookieName string, log *zap.Logger) *Handler {
	return &Handler{
		accounts:   accounts,
		chats:      chats,
		sessions:   sessions,
		feela:      feela,
		cookieName: cookieName,
		validate:   validator.New(),
		log:        log,
	}
}

// RegisterRoutes 注册账号相关的路由，requireAuth 保护需要登录的接口
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.With(requireAuth).Post("/logout", h.handleLogout)
	r.With(requireAuth).Get("/me", h.handleMe)
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Username  string    `json:"username"`
	LoggedIn  bool      `json:"loggedIn"`
	Welcome   string    `json:"welcome"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleSignup 注册新账号
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, msgFillBothFields)
		return
	}

	err := h.accounts.Register(r.Context(), payload.Username, payload.Password)
	switch {
	case errors.Is(err, accountService.ErrInvalidInput):
		_ = utils.RespondError(w, http.StatusBadRequest, msgFillBothFields)
		return
	case errors.Is(err, accountService.ErrAlreadyExists):
		_ = utils.RespondError(w, http.StatusConflict, msgUsernameTaken)
		return
	case err != nil:
		h.log.Error("signup failed", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	h.log.Info("account created", zap.String("username", payload.Username))
	_ = utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"username": payload.Username,
		"message":  "Account created for " + payload.Username + ". Please log in.",
	})
}

// handleLogin 校验凭证并签发会话
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Authenticate(r.Context(), payload.Username, payload.Password); err != nil {
		_ = utils.RespondError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	if err := h.chats.Ensure(r.Context(), payload.Username); err != nil {
		h.log.Error("prepare transcript failed", zap.String("username", payload.Username), zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, sess, err := h.sessions.Issue(r.Context(), payload.Username)
	if err != nil {
		h.log.Error("issue session failed", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info("user logged in", zap.String("username", sess.Username), zap.String("session", sess.ID))
	_ = utils.RespondJSON(w, http.StatusOK, sessionResponse{
		Username:  sess.Username,
		LoggedIn:  true,
		Welcome:   h.feela.Welcome(sess.Username),
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleLogout 注销当前会话
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	if err := h.sessions.Revoke(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		h.log.Error("revoke session failed", zap.Error(err))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info("user logged out", zap.String("username", sess.Username))
	w.WriteHeader(http.StatusNoContent)
}

// handleMe 返回当前登录用户
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
		return
	}

	_ = utils.RespondJSON(w, http.StatusOK, sessionResponse{
		Username:  sess.Username,
		LoggedIn:  sess.LoggedIn,
		Welcome:   h.feela.Welcome(sess.Username),
		ExpiresAt: sess.ExpiresAt,
	})
}
