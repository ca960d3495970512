package domain

import "context"

type principalKey struct{}

// Principal is the caller a request acts for, resolved from a bearer token.
type Principal struct {
	Name    string // value of the configured name claim, else the subject
	Subject string
	Issuer  string
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// PrincipalName returns the caller's name, or "" for anonymous requests.
func PrincipalName(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Name
}
