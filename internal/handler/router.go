package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/handler/account"
	"github.com/feela-app/feela/backend/internal/handler/chat"
	"github.com/feela-app/feela/backend/internal/handler/persona"
	"github.com/feela-app/feela/backend/internal/handler/socket"
	"github.com/feela-app/feela/backend/internal/handler/stream"
	"github.com/feela-app/feela/backend/internal/logger"
	middlewarePkg "github.com/feela-app/feela/backend/internal/middleware"
	personaModel "github.com/feela-app/feela/backend/internal/model/persona"
	accountService "github.com/feela-app/feela/backend/internal/service/account"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/internal/service/session"
	"github.com/feela-app/feela/backend/pkg/utils"
)

// Deps collects the services the HTTP layer is wired to.
type Deps struct {
	Personas   personaModel.Store
	Feela      personaModel.Persona
	Accounts   *accountService.Service
	Chats      *chatService.Service
	Sessions   *session.Manager
	Responder  chatService.Responder
	CookieName string
	Log        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	auth := middlewarePkg.NewAuth(deps.Sessions, deps.CookieName, deps.Log)

	personaHandler := persona.New(deps.Personas)
	accountHandler := account.New(deps.Accounts, deps.Chats, deps.Sessions, deps.Feela, deps.CookieName, deps.Log)
	chatHandler := chat.New(deps.Chats, deps.Responder, deps.Log)
	streamHandler := stream.New(deps.Chats, deps.Responder, deps.Feela, deps.Log)
	wsHandler := socket.NewWebSocketHandler(deps.Chats, deps.Responder, deps.Sessions, deps.Feela, deps.Log)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Sessions.Active(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		accountHandler.RegisterRoutes(api, auth.Require)

		api.Group(func(protected chi.Router) {
			protected.Use(auth.Require)
			chatHandler.RegisterRoutes(protected)
			streamHandler.RegisterRoutes(protected)
			wsHandler.RegisterRoutes(protected)
		})
	})

	return r
}
