package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/model/chat"
	"github.com/feela-app/feela/backend/internal/service/session"
	"github.com/feela-app/feela/backend/pkg/utils"
)

type contextKey string

const sessionKey contextKey = "session"

// Auth resolves the session token sent as a bearer token or cookie.
type Auth struct {
	sessions   *session.Manager
	cookieName string
	log        *zap.Logger
}

// NewAuth creates the session middleware.
func NewAuth(sessions *session.Manager, cookieName string, log *zap.Logger) *Auth {
	return &Auth{sessions: sessions, cookieName: cookieName, log: log}
}

// Require rejects requests without a live session with 401 and stores the
// session in the request context otherwise.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.tokenFrom(r)
		sess, err := a.sessions.Resolve(r.Context(), token)
		if err != nil {
			a.log.Debug("rejecting unauthenticated request", zap.String("path", r.URL.Path), zap.Error(err))
			_ = utils.RespondError(w, http.StatusUnauthorized, "please log in")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func (a *Auth) tokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(a.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess chat.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFrom returns the session stored by Require.
func SessionFrom(ctx context.Context) (chat.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(chat.Session)
	return sess, ok
}
