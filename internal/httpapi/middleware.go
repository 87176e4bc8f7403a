package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/auth"
)

type actorKey struct{}

// ActorFromContext returns the authenticated actor set by AuthMiddleware.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(auth.Actor)
	return actor, ok
}

// AuthMiddleware verifies the bearer token and binds the actor to the
// request context.
func AuthMiddleware(jwt *auth.JWTProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			actor, err := jwt.ResolveActor(token)
			if err != nil {
				log.Debug().Err(err).Msg("token rejected")
				writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
