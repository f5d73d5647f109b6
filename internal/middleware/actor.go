package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ContextKey string

const ActorIDKey ContextKey = "actorID"

// ActorHeader carries the caller identity. Authentication happens upstream;
// this service trusts whatever the gateway puts here.
const ActorHeader = "X-Actor-ID"

func LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actorID == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
	})
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			http.Error(w, "missing "+ActorHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorIDKey, actorID)
}

func ActorFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(ActorIDKey)
	if val == nil {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}
