package auth

import (
	"context"
	"errors"
)

// ErrNoCredentials is returned when a request carries no token.
var ErrNoCredentials = errors.New("auth: no credentials")

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string
	Method  string
}

// TokenValidator validates a token string and returns who it belongs to.
type TokenValidator interface {
	ValidateToken(token string) (Principal, error)
}

// TokenValidatorFunc adapts an ordinary function to the TokenValidator interface.
type TokenValidatorFunc func(token string) (Principal, error)

// ValidateToken implements TokenValidator.
func (f TokenValidatorFunc) ValidateToken(token string) (Principal, error) {
	return f(token)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
