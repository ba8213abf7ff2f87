package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastArgon() argon2.Config {
	cfg := argon2.DefaultConfig()
	cfg.TimeCost = 1
	cfg.MemoryCost = 8 * 1024
	cfg.Parallelism = 1
	return cfg
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue("a@b.km")
	require.NoError(t, err)

	email, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.km", email)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.Issue("a@b.km")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).Issue("a@b.km")
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "a@b.km",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Garbage(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUsers_Authenticate(t *testing.T) {
	users := NewUsers(fastArgon())
	require.NoError(t, users.Add("A@B.km", "hunter2"))

	assert.NoError(t, users.Authenticate("a@b.km", "hunter2"))
	assert.ErrorIs(t, users.Authenticate("a@b.km", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, users.Authenticate("x@y.km", "hunter2"), ErrInvalidCredentials)
}

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(fastArgon(), " a@b.km:pw1, c@d.km:pw:with:colons ,")
	require.NoError(t, err)
	assert.Equal(t, 2, users.Len())
	assert.NoError(t, users.Authenticate("c@d.km", "pw:with:colons"))

	_, err = ParseUsers(fastArgon(), "broken")
	assert.ErrorContains(t, err, "malformed user entry")

	users, err = ParseUsers(fastArgon(), "")
	require.NoError(t, err)
	assert.Zero(t, users.Len())
}
