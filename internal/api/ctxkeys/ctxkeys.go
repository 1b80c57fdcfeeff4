// Package ctxkeys holds the request context keys shared by middleware and
// handlers. It is a leaf package so neither side imports the other.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
type Key string

const (
	// Locale is the resolved UI locale, set by the locale middleware.
	Locale Key = "locale"

	// ClientID identifies the caller: the token subject when auth is on,
	// otherwise the remote IP. Set by the auth or client middleware.
	ClientID Key = "client_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the value for key, or fallback when unset or empty.
func String(ctx context.Context, key Key, fallback string) string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v
	}
	return fallback
}
