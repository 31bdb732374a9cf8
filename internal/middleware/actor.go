package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/alexedwards/scs/v2"
)

type ContextKey string

const ActorKey ContextKey = "actor"

const (
	// ActorHeader lets API clients without a session name themselves.
	ActorHeader = "X-Actor"
	// SystemActor is recorded for changes made by background jobs.
	SystemActor    = "system"
	AnonymousActor = "anonymous"

	sessionActorKey = "actor"
	maxActorLength  = 64
)

// LoadActor resolves the acting user's display name from the session, then
// from the X-Actor header, and stores it in the request context. The name is
// only used for audit fields.
func LoadActor(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := sessionManager.GetString(r.Context(), sessionActorKey)
			if actor == "" {
				actor = CleanActor(r.Header.Get(ActorHeader))
			}
			if actor == "" {
				actor = AnonymousActor
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// SetSessionActor remembers name for the rest of the session.
func SetSessionActor(ctx context.Context, sessionManager *scs.SessionManager, name string) bool {
	name = CleanActor(name)
	if name == "" {
		return false
	}
	if err := sessionManager.RenewToken(ctx); err != nil {
		return false
	}
	sessionManager.Put(ctx, sessionActorKey, name)
	return true
}

// CleanActor trims name and cuts it to maxActorLength characters. Bytes that
// are not valid UTF-8 are dropped.
func CleanActor(name string) string {
	name = strings.TrimSpace(strings.ToValidUTF8(name, ""))
	if utf8.RuneCountInString(name) > maxActorLength {
		name = strings.TrimSpace(string([]rune(name)[:maxActorLength]))
	}
	return name
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func ActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(ActorKey).(string)
	if !ok || actor == "" {
		return SystemActor
	}
	return actor
}
