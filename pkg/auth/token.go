package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Verifier validates a raw token and returns its parsed claims.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

// Issuer creates signed access tokens for an authenticated subject.
type Issuer interface {
	Issue(subject string) (token string, expiresAt time.Time, err error)
}

// HMACSettings are shared by the HS256 issuer and verifier.
type HMACSettings struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// HMAC issues and verifies HS256 signed JWTs with a shared secret.
type HMAC struct {
	key      jwk.Key
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

var _ Verifier = (*HMAC)(nil)
var _ Issuer = (*HMAC)(nil)

// NewHMAC creates an HS256 token issuer and verifier.
func NewHMAC(s HMACSettings) (*HMAC, error) {
	if s.Secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	key, err := jwk.Import([]byte(s.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to import signing key: %w", err)
	}
	return &HMAC{
		key:      key,
		issuer:   s.Issuer,
		audience: s.Audience,
		ttl:      s.TTL,
		now:      time.Now,
	}, nil
}

// Issue builds a token with iss, aud, sub, jti, iat and exp claims and signs it.
func (h *HMAC) Issue(subject string) (string, time.Time, error) {
	now := h.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(h.ttl)

	tok, err := jwt.NewBuilder().
		Issuer(h.issuer).
		Audience([]string{h.audience}).
		Subject(subject).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), h.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), expiresAt, nil
}

// Verify checks the signature, the time based claims, the issuer and the audience.
func (h *HMAC) Verify(_ context.Context, tokenString string) (jwt.Token, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), h.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(h.issuer),
		jwt.WithAudience(h.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}
