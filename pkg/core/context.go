package core

import (
	"context"
)

type contextKey string

const (
	sessionKey contextKey = "formwizard:session"
	csrfKey    contextKey = "formwizard:csrf"
)

// SessionIDKey is the Session entry holding the browser session ID.
const SessionIDKey = "session_id"

// WithSessionID adds the session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionIDFromContext retrieves the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

// WithCSRFToken attaches the token rendered into fallback forms.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfKey, token)
}

// CSRFTokenFromContext returns the token or "".
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfKey).(string)
	return t
}
