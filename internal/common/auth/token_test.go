package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, exp, err := tokens.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	subject, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestVerifyRejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, _, err := tokens.Issue("user-1")
	require.NoError(t, err)

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("user-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		tokens *Tokens
		token  string
	}{
		"wrong secret":   {NewTokens("other", time.Hour), signed},
		"expired":        {tokens, old},
		"garbage":        {tokens, "not-a-token"},
		"unsigned token": {tokens, none},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.tokens.Verify(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
