package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
	"github.com/feela-app/feela/backend/internal/config"
	"github.com/feela-app/feela/backend/internal/handler"
	"github.com/feela-app/feela/backend/internal/logger"
	"github.com/feela-app/feela/backend/internal/model/persona"
	"github.com/feela-app/feela/backend/internal/service/account"
	"github.com/feela-app/feela/backend/internal/service/ai"
	"github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/internal/service/companion"
	"github.com/feela-app/feela/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync(zl) }()

	rules, err := mood.Load(cfg.Rules.File)
	if err != nil {
		zl.Fatal("failed to load rule table", zap.String("file", cfg.Rules.File), zap.Error(err))
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	feela, err := persona.MustFind(personaStore, persona.FeelaID)
	if err != nil {
		zl.Fatal("failed to load persona", zap.Error(err))
	}

	accounts := account.NewService()
	chatService := chat.NewService(accounts)

	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		secret, err = session.RandomSecret()
		if err != nil {
			zl.Fatal("failed to generate session secret", zap.Error(err))
		}
		zl.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	sessions := session.NewManager(secret, cfg.Session.TTL)

	aiService, err := ai.NewService(ctx, personaStore, persona.FeelaID, cfg.AI, zl.Named("ai"))
	if err != nil {
		zl.Fatal("failed to initialize AI service", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	}
	zl.Info("AI service initialized", zap.String("provider", cfg.AI.Provider))

	engine := companion.NewEngine(rules,
		companion.WithModel(aiService),
		companion.WithTimeout(cfg.AI.Timeout),
		companion.WithLogger(zl.Named("companion")),
	)

	router := handler.NewRouter(handler.Deps{
		Personas:   personaStore,
		Feela:      feela,
		Accounts:   accounts,
		Chats:      chatService,
		Sessions:   sessions,
		Responder:  engine,
		CookieName: cfg.Session.CookieName,
		Log:        zl,
	})

	startServer(ctx, zl, cfg.Server, router)
}

func startServer(ctx context.Context, zl *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("Feela backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
	zl.Info("Feela backend stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
