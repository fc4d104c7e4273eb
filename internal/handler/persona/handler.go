package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feela-app/feela/backend/internal/model/persona"
	"github.com/feela-app/feela/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/persona", h.handleFeela)
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	_ = utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

// handleFeela returns the companion shown on the login screen.
func (h *Handler) handleFeela(w http.ResponseWriter, r *http.Request) {
	feela, ok := h.personas.FindByID(persona.FeelaID)
	if !ok {
		_ = utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, feela)
}
