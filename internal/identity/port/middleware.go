package port

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/domain"
)

type tokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

type accountIDKey struct{}

// AccountIDFromContext returns the account ID RequireAuth stored.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey{}).(string)
	return id, ok && id != ""
}

// RequireAuth rejects requests without a valid bearer session token and
// passes the token subject on as the account ID.
func RequireAuth(v tokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, logger, domain.ErrUnauthorized)
				return
			}

			claims, err := v.ValidateAccessToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "session token rejected", slog.String("reason", err.Error()))
				writeError(w, r, logger, domain.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
