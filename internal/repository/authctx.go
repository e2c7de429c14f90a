package repository

import "context"

type ctxKey string

const bearerKey ctxKey = "catalog.bearer"

// WithBearer stores the bearer token for the outgoing backend call in context.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// BearerFromCtx fetches the bearer token from context.
func BearerFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
