package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/knowledgehub/service-api-go/internal/user/entity"
)

// SessionCookieName is the cookie carrying the bearer token.
const SessionCookieName = "session_id"

type ctxKey int

const userCtxKey ctxKey = iota

// UserFrom returns the identity the session middleware resolved for this
// request, if any.
func UserFrom(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(userCtxKey).(*entity.User)
	return u, ok
}

func withUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// RequireSession returns a middleware that resolves the session cookie
// into an identity and fails the request closed when it cannot. Missing
// cookie, invalid session and dangling identity all produce the same 401
// body; only a store outage maps to a 500.
func RequireSession(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				token = c.Value
			}

			u, err := svc.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					logger.Debugw("session resolution refused", "path", r.URL.Path)
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
					return
				}
				logger.Errorw("session resolution failed", "path", r.URL.Path, "err", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
		})
	}
}
