package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/proppicks/auth-gateway/config"
	"github.com/proppicks/auth-gateway/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  testSecret,
		JWTIssuer:  "proppicks-auth",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestIssuer(t *testing.T, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testAuthConfig(), opts...)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AuthConfig)
		wantErr bool
	}{
		{"valid", func(*config.AuthConfig) {}, false},
		{"short secret", func(c *config.AuthConfig) { c.JWTSecret = "short" }, true},
		{"empty secret", func(c *config.AuthConfig) { c.JWTSecret = "" }, true},
		{"zero ttl", func(c *config.AuthConfig) { c.TokenTTL = 0 }, true},
		{"negative ttl", func(c *config.AuthConfig) { c.TokenTTL = -time.Minute }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAuthConfig()
			tt.mutate(&cfg)

			issuer, err := NewTokenIssuer(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, issuer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Hour, issuer.TTL())
		})
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, WithClock(fixedClock(now)))
	userID := uuid.New()

	issued, err := issuer.Issue(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, now.Add(time.Hour), issued.ExpiresAt)
	assert.Len(t, strings.Split(issued.Token, "."), 3)

	verified, err := issuer.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, verified.UserID)
	assert.Equal(t, issued.ID, verified.ID)
	assert.True(t, issued.ExpiresAt.Equal(verified.ExpiresAt))
}

func TestTokenIssuer_UniqueTokenIDs(t *testing.T) {
	issuer := newTestIssuer(t)
	userID := uuid.New()

	a, err := issuer.Issue(userID)
	require.NoError(t, err)
	b, err := issuer.Issue(userID)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestTokenIssuer_PayloadCarriesNoPersonalData(t *testing.T) {
	issuer := newTestIssuer(t)
	userID := uuid.New()

	issued, err := issuer.Issue(userID)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(issued.Token, claims)
	require.NoError(t, err)

	allowed := map[string]bool{"sub": true, "iss": true, "iat": true, "exp": true, "jti": true}
	for key := range claims {
		assert.True(t, allowed[key], "unexpected claim %q", key)
	}
	assert.Equal(t, userID.String(), claims["sub"])
}

func TestTokenIssuer_Expiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issued, err := newTestIssuer(t, WithClock(fixedClock(base))).Issue(uuid.New())
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		verifier := newTestIssuer(t, WithClock(fixedClock(base.Add(time.Hour-time.Second))))
		_, err := verifier.Verify(issued.Token)
		assert.NoError(t, err)
	})

	t.Run("expired after ttl", func(t *testing.T) {
		verifier := newTestIssuer(t, WithClock(fixedClock(base.Add(time.Hour+time.Second))))
		_, err := verifier.Verify(issued.Token)
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrTokenExpired))
		assert.False(t, errors.Is(err, services.ErrInvalidToken))
		assert.True(t, services.IsUnauthorizedError(err))
	})

	t.Run("issued in the future", func(t *testing.T) {
		verifier := newTestIssuer(t, WithClock(fixedClock(base.Add(-time.Hour))))
		_, err := verifier.Verify(issued.Token)
		assert.True(t, errors.Is(err, services.ErrInvalidToken))
	})
}

func TestTokenIssuer_RejectsAnyTampering(t *testing.T) {
	issuer := newTestIssuer(t)
	issued, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	token := []byte(issued.Token)
	for i := range token {
		tampered := make([]byte, len(token))
		copy(tampered, token)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}

		_, err := issuer.Verify(string(tampered))
		require.Error(t, err, "byte %d modified but token accepted", i)
		assert.True(t, services.IsUnauthorizedError(err), "byte %d", i)
	}
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	userID := uuid.New()
	now := time.Now()

	validClaims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    "proppicks-auth",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	sign := func(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, key interface{}) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "empty",
			token: func(*testing.T) string { return "" },
		},
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not.a.jwt" },
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, validClaims, []byte("another-secret-that-is-also-32-bytes!!"))
			},
		},
		{
			name: "different hmac algorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, validClaims, []byte(testSecret))
			},
		},
		{
			name: "alg none",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, validClaims, jwt.UnsafeAllowNoneSignatureType)
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				c := validClaims
				c.Issuer = "someone-else"
				return sign(t, jwt.SigningMethodHS256, c, []byte(testSecret))
			},
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				c := validClaims
				c.ExpiresAt = nil
				return sign(t, jwt.SigningMethodHS256, c, []byte(testSecret))
			},
		},
		{
			name: "subject is not a user id",
			token: func(t *testing.T) string {
				c := validClaims
				c.Subject = "alice@example.com"
				return sign(t, jwt.SigningMethodHS256, c, []byte(testSecret))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verified, err := issuer.Verify(tt.token(t))
			require.Error(t, err)
			assert.Nil(t, verified)
			assert.True(t, errors.Is(err, services.ErrInvalidToken))
		})
	}

	t.Run("control: valid claims accepted", func(t *testing.T) {
		verified, err := issuer.Verify(sign(t, jwt.SigningMethodHS256, validClaims, []byte(testSecret)))
		require.NoError(t, err)
		assert.Equal(t, userID, verified.UserID)
	})
}
