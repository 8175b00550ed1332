package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/primebond/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "primebond-ledger",
	})
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"member", RoleMember, false},
		{" ADMIN ", RoleAdmin, false},
		{"root", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJWTService_DefaultExpiration(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s"})
	assert.Equal(t, 15*time.Minute, svc.Expiration())
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService()

	tok, err := svc.Issue("user-42", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.ExpiresAt.After(time.Now()))

	claims, err := svc.Validate(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "user-42", claims.Subject)
	assert.True(t, claims.IsAdmin())
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_IssueRejectsBadInput(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.Issue("", RoleMember)
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.Issue("u1", Role("owner"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestJWTService_Validate(t *testing.T) {
	svc := newTestJWTService()

	t.Run("expired", func(t *testing.T) {
		issued := time.Now().Add(-time.Hour)
		old := newTestJWTService()
		old.now = func() time.Time { return issued }
		tok, err := old.Issue("u1", RoleMember)
		require.NoError(t, err)

		_, err = svc.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-characters", Issuer: "primebond-ledger"})
		tok, err := other.Issue("u1", RoleMember)
		require.NoError(t, err)

		_, err = svc.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
		tok, err := other.Issue("u1", RoleMember)
		require.NoError(t, err)

		_, err = svc.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("non-hmac signing method", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1", Role: RoleAdmin})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role in a signed token", func(t *testing.T) {
		now := time.Now()
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "primebond-ledger",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			UserID: "u1",
			Role:   "owner",
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-at-least-32-chars"))
		require.NoError(t, err)

		_, err = svc.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}
