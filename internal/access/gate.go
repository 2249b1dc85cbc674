// Package access implements the request and role gates shared by the HTTP and gRPC
// transports.
package access

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/food-advisor/internal/authctx"
	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/token"
)

// TokenDecoder verifies a raw token. Implemented by *token.Codec.
type TokenDecoder interface {
	Decode(raw string) (token.Claims, error)
}

// Gate admits or rejects requests based on the bearer token and the role it carries.
// It keeps no per-request state.
type Gate struct {
	tokens TokenDecoder
	log    *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(tokens TokenDecoder, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{tokens: tokens, log: log}
}

// Authenticate extracts the bearer token from an Authorization header value, verifies it
// and returns a context carrying the claims.
//
// Errors are errs.ErrMissingToken or errs.ErrInvalidToken; the decode failure class is
// logged at debug level only.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (context.Context, token.Claims, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return ctx, token.Claims{}, err
	}
	claims, err := g.tokens.Decode(raw)
	if err != nil {
		g.log.Debug("token rejected", zap.Error(err))
		return ctx, token.Claims{}, errs.ErrInvalidToken
	}
	return authctx.WithClaims(ctx, claims), claims, nil
}

// Authorize requires administrator claims in ctx. It fails closed with errs.ErrNoClaims
// when Authenticate did not run before it.
func (g *Gate) Authorize(ctx context.Context) error {
	claims, ok := authctx.ClaimsFromCtx(ctx)
	if !ok {
		g.log.Error("role gate reached without claims")
		return errs.ErrNoClaims
	}
	if !claims.IsAdmin() {
		return fmt.Errorf("%w: role %q", errs.ErrForbidden, claims.Role)
	}
	return nil
}

// BearerToken parses "Bearer <token>" (scheme case-insensitive).
func BearerToken(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", errs.ErrMissingToken
	}
	t := strings.TrimSpace(v[7:])
	if t == "" {
		return "", errs.ErrMissingToken
	}
	return t, nil
}
