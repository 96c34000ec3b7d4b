package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signed, expiresAt, err := GenerateToken("admin", "secret-key", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return []byte("secret-key"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "admin", claims["sub"])
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		subject   string
		secret    string
		expiresIn time.Duration
	}{
		{"empty subject", "", "secret", time.Hour},
		{"empty secret", "admin", "", time.Hour},
		{"non-positive expiry", "admin", "secret", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := GenerateToken(tc.subject, tc.secret, tc.expiresIn)
			require.Error(t, err)
		})
	}
}

func TestCheckPasswordBcrypt(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "s3cret"))
	require.False(t, CheckPassword(hash, "wrong"))
}

func TestCheckPasswordPlainText(t *testing.T) {
	t.Parallel()

	require.True(t, CheckPassword("s3cret", "s3cret"))
	require.False(t, CheckPassword("s3cret", "wrong"))
	require.False(t, CheckPassword("", ""))
}
