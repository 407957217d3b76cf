package authority

import "context"

type principalContextKey struct{}

// WithPrincipal stores the authenticated principal in ctx.
func WithPrincipal(ctx context.Context, p AuthenticatedPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal from ctx.
func PrincipalFromContext(ctx context.Context) (AuthenticatedPrincipal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(AuthenticatedPrincipal)
	return p, ok
}
