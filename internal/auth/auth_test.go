package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewTokenManager_EmptySecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour, "growtive")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager("s3cret", time.Hour, "growtive")
	require.NoError(t, err)

	token, err := m.Issue(12, "Sari")
	require.NoError(t, err)

	id, name, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, "Sari", name)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "growtive", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m, err := NewTokenManager("s3cret", time.Minute, "")
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Issue(1, "old")
	require.NoError(t, err)

	_, _, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	a, _ := NewTokenManager("one", time.Hour, "")
	b, _ := NewTokenManager("two", time.Hour, "")

	token, err := a.Issue(1, "x")
	require.NoError(t, err)
	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = b.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	m, _ := NewTokenManager("s3cret", time.Hour, "")
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsBadSubject(t *testing.T) {
	m, _ := NewTokenManager("s3cret", time.Hour, "")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"},
	}).SignedString(m.secret)
	require.NoError(t, err)

	_, _, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("rahasia123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia123", hash)

	assert.True(t, CheckPassword("rahasia123", hash))
	assert.False(t, CheckPassword("salah", hash))
	assert.False(t, CheckPassword("rahasia123", "not-a-hash"))
}

func TestHashPassword_ByteLimit(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes), bcrypt.MinCost)
	assert.NoError(t, err)

	// 40 runes, 80 bytes.
	_, err = HashPassword(strings.Repeat("é", 40), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
