// Package token encodes and decodes signed session tokens (HS256 JWT).
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/food-advisor/internal/model"
)

// Decode failure classes. Callers at the transport boundary must collapse all of them
// into a single "invalid token" answer.
var (
	ErrSignature = errors.New("token signature mismatch")
	ErrFormat    = errors.New("token malformed")
	ErrExpired   = errors.New("token expired")
)

// Claims is the verified payload of a session token.
type Claims struct {
	Subject   string
	Email     string
	Role      model.Role
	ExpiresAt int64 // Unix seconds
}

// UserID parses the subject back to the numeric identity id.
func (c Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// IsAdmin reports whether the claims carry the administrator role.
func (c Claims) IsAdmin() bool { return c.Role.IsAdmin() }

// wireClaims is the JSON payload: {"email","role","sub","exp"}.
type wireClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

var method = jwt.SigningMethodHS256

// Codec signs and verifies tokens with a single process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for expiry checks and Mint.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec constructs a Codec. The secret is copied.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithStrictDecoding()),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Encode signs claims and returns the compact token.
func (c *Codec) Encode(cl Claims) (string, error) {
	if cl.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrFormat)
	}
	wc := wireClaims{
		Email: cl.Email,
		Role:  cl.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cl.Subject,
			ExpiresAt: jwt.NewNumericDate(time.Unix(cl.ExpiresAt, 0)),
		},
	}
	return jwt.NewWithClaims(method, wc).SignedString(c.secret)
}

// Mint builds claims for u expiring ttl from now and encodes them.
func (c *Codec) Mint(u model.User, ttl time.Duration) (string, Claims, error) {
	cl := Claims{
		Subject:   u.Subject(),
		Email:     u.Email,
		Role:      u.Role,
		ExpiresAt: c.now().Add(ttl).Unix(),
	}
	s, err := c.Encode(cl)
	if err != nil {
		return "", Claims{}, err
	}
	return s, cl, nil
}

// Decode verifies raw and returns its claims.
//
// The MAC is checked first (constant time); the payload is only parsed after the MAC
// matched, and expiry is only checked after a successful parse. A token is expired
// when now >= exp.
func (c *Codec) Decode(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Claims{}, ErrFormat
	}

	sig, err := c.parser.DecodeSegment(parts[2])
	if err != nil {
		return Claims{}, ErrSignature
	}
	if err := method.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return Claims{}, ErrSignature
	}

	var wc wireClaims
	tok, _, err := c.parser.ParseUnverified(raw, &wc)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if tok.Method.Alg() != method.Alg() {
		return Claims{}, fmt.Errorf("%w: unexpected alg %q", ErrFormat, tok.Method.Alg())
	}
	if wc.Subject == "" || wc.ExpiresAt == nil || !wc.Role.IsValid() {
		return Claims{}, fmt.Errorf("%w: missing sub/exp/role", ErrFormat)
	}
	if _, err := strconv.ParseInt(wc.Subject, 10, 64); err != nil {
		return Claims{}, fmt.Errorf("%w: non-numeric subject", ErrFormat)
	}

	v := jwt.NewValidator(jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err := v.Validate(wc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return Claims{
		Subject:   wc.Subject,
		Email:     wc.Email,
		Role:      wc.Role,
		ExpiresAt: wc.ExpiresAt.Unix(),
	}, nil
}
