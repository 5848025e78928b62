package domain

import "context"

type idempotencyKey struct{}

// WithIdempotencyKey tags ctx so every remote write made with it is sent as the same
// logical write. Retries of one write must share the key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}
