package services

import "context"

type contextKey string

const (
	clientIDContextKey contextKey = "microjobs.client_id"
	emailContextKey    contextKey = "microjobs.email"
	tokenContextKey    contextKey = "microjobs.token"
)

// WithClientID tags ctx with the browser identifier used for notifications.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

func ClientIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIDContextKey).(string)
	return v
}

// WithSession tags ctx with the signed-in user and their session token.
func WithSession(ctx context.Context, email, token string) context.Context {
	ctx = context.WithValue(ctx, emailContextKey, email)
	return context.WithValue(ctx, tokenContextKey, token)
}

func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailContextKey).(string)
	return v, ok && v != ""
}

func TokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenContextKey).(string)
	return v
}
