// Package authctx carries verified token claims through a request context.
package authctx

import (
	"context"

	"github.com/and161185/food-advisor/internal/token"
)

type ctxKey string

const claimsKey ctxKey = "fa.claims"

// WithClaims stores verified claims in context.
func WithClaims(ctx context.Context, c token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromCtx fetches claims from context.
func ClaimsFromCtx(ctx context.Context) (token.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return token.Claims{}, false
	}
	c, ok := v.(token.Claims)
	return c, ok
}
