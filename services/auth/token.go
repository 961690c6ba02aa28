package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/proppicks/auth-gateway/config"
	"github.com/proppicks/auth-gateway/services"
)

// IssuedToken is a freshly signed bearer token
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// VerifiedToken is the identity recovered from a valid token
type VerifiedToken struct {
	UserID    uuid.UUID
	ID        string
	ExpiresAt time.Time
}

// TokenService issues and verifies session tokens
type TokenService interface {
	Issue(userID uuid.UUID) (*IssuedToken, error)
	Verify(token string) (*VerifiedToken, error)
}

// TokenIssuer signs HS256 JWTs whose only claim about the caller is the subject.
// It is immutable after construction and safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customizes a TokenIssuer
type TokenOption func(*TokenIssuer)

// WithClock replaces time.Now, for tests that need to move past expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		t.now = now
	}
}

// NewTokenIssuer builds an issuer from the auth configuration
func NewTokenIssuer(cfg config.AuthConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if len(cfg.JWTSecret) < config.MinJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", config.MinJWTSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}

	t := &TokenIssuer{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the configured token lifetime
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for userID that expires after the configured TTL
func (t *TokenIssuer) Issue(userID uuid.UUID) (*IssuedToken, error) {
	now := t.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(t.ttl)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        jti,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{Token: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the subject.
// Expired tokens yield ErrTokenExpired; every other failure yields ErrInvalidToken.
func (t *TokenIssuer) Verify(token string) (*VerifiedToken, error) {
	if token == "" {
		return nil, services.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.ErrTokenExpired.Wrap(err)
		}
		return nil, services.ErrInvalidToken.Wrap(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, services.ErrInvalidToken.Wrap(fmt.Errorf("subject: %w", err))
	}

	return &VerifiedToken{
		UserID:    userID,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
