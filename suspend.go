package aliascache

import "context"

type suspendKey struct{}

// WithInvalidationSuspended returns a context under which Clean is a no-op.
// Bulk importers set it once and pass the context down instead of flipping
// process-wide state.
func WithInvalidationSuspended(ctx context.Context, suspended bool) context.Context {
	return context.WithValue(ctx, suspendKey{}, suspended)
}

// InvalidationSuspended reports whether ctx carries a suspension flag.
func InvalidationSuspended(ctx context.Context) bool {
	s, _ := ctx.Value(suspendKey{}).(bool)
	return s
}
