package auth

import "context"

type contextKey int

const (
	businessIDKey contextKey = iota
	actorKey
)

// WithIdentity returns a context carrying the authenticated caller's
// business and email. Internal callers (CLI, scheduler) use it to run
// service operations without the HTTP middleware.
func WithIdentity(ctx context.Context, businessID, actor string) context.Context {
	ctx = context.WithValue(ctx, businessIDKey, businessID)
	return context.WithValue(ctx, actorKey, actor)
}

// BusinessIDFromContext returns the caller's business ID, or "" when
// the context carries no identity.
func BusinessIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(businessIDKey).(string)
	return id
}

// ActorFromContext returns the authenticated caller's email, or ""
// when no actor was resolved. Audit recording treats "" as a signal to
// skip the entry.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}
