package providers

import "context"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID tags ctx with the engine-assigned request id so outgoing
// provider calls can forward it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id from ctx, or "" when absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
