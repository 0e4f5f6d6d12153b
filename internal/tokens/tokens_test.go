package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := NewAccessClaims("42", "sam@example.com", "sam", "Sam", "Lee", "user", exp)
	raw, err := SignAccessToken(claims, testSecret)
	require.NoError(t, err)
	return raw
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat("a.b.c"))
	assert.NoError(t, CheckFormat("a.b.c.d.e"))

	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "a.b.c.d.e.f"} {
		assert.ErrorIs(t, CheckFormat(raw), ErrMalformed, raw)
	}
}

func TestRoundTrip(t *testing.T) {
	raw := signedToken(t, time.Now().Add(time.Minute))

	claims, err := AccessClaimsFromToken(raw, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "sam@example.com", claims.Email)
	assert.Equal(t, "sam", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestRejectsWrongSecret(t *testing.T) {
	raw := signedToken(t, time.Now().Add(time.Minute))

	_, err := AccessClaimsFromToken(raw, []byte("some-other-secret"))
	require.ErrorIs(t, err, ErrInvalid)
	_, err = AccessClaimsIgnoringExpiry(raw, []byte("some-other-secret"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestRejectsMalformedBeforeParsing(t *testing.T) {
	_, err := AccessClaimsFromToken("no-dots-here", testSecret)
	require.ErrorIs(t, err, ErrMalformed)
	_, err = AccessClaimsIgnoringExpiry("one.two", testSecret)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestExpiredTokenOnlyPassesLenientParse(t *testing.T) {
	raw := signedToken(t, time.Now().Add(-time.Minute))

	_, err := AccessClaimsFromToken(raw, testSecret)
	require.ErrorIs(t, err, ErrInvalid)

	claims, err := AccessClaimsIgnoringExpiry(raw, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
}

func TestLenientParseStillChecksIssuerAndAudience(t *testing.T) {
	claims := NewAccessClaims("42", "sam@example.com", "sam", "", "", "user", time.Now().Add(time.Minute))
	claims.Issuer = "someone-else"
	raw, err := SignAccessToken(claims, testSecret)
	require.NoError(t, err)

	_, err = AccessClaimsIgnoringExpiry(raw, testSecret)
	require.ErrorIs(t, err, ErrInvalid)
}
