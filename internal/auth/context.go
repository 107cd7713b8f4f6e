package auth

import (
	"context"
)

/* Context key type for type-safe context values */
type contextKey string

const sessionKey contextKey = "session"

/* SetSession sets the effective session in context */
func SetSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

/* GetSessionFromContext gets the effective session from context */
func GetSessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionKey).(*Session)
	return session, ok
}
