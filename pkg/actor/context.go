// Package actor carries the identity of the caller performing a request so
// that mutations can be attributed in created_by/updated_by and the audit log.
package actor

import "context"

// Anonymous is reported when no principal was resolved for a request.
const Anonymous = "anonymous"

type ctxKey struct{}

// Principal identifies the caller of a request.
type Principal struct {
	User   string
	Groups []string
}

// WithPrincipal returns a new context with p attached.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext retrieves the Principal from the context.
// Returns the zero value and false if none is set.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// FromContext returns the user name of the caller, or Anonymous.
func FromContext(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.User == "" {
		return Anonymous
	}
	return p.User
}
