package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordService_HashAndVerify(t *testing.T) {
	s := NewPasswordService()
	salt, err := s.NewSalt()
	require.NoError(t, err)

	hash := s.HashPassword("hunter2", salt)
	assert.True(t, s.VerifyPassword("hunter2", hash, salt))
	assert.False(t, s.VerifyPassword("wrong", hash, salt))
}

func TestPasswordService_SaltEncodeRoundTrip(t *testing.T) {
	s := NewPasswordService()
	salt, err := s.NewSalt()
	require.NoError(t, err)

	encoded := EncodeSalt(salt)
	decoded, err := DecodeSalt(encoded)
	require.NoError(t, err)
	assert.Equal(t, salt, decoded)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	ts := NewTokenService("secret", time.Hour)

	token, err := ts.Issue(time.Now())
	require.NoError(t, err)

	sub, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	ts := NewTokenService("secret", time.Millisecond)

	token, err := ts.Issue(time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsTamperedSecret(t *testing.T) {
	ts1 := NewTokenService("secret-a", time.Hour)
	ts2 := NewTokenService("secret-b", time.Hour)

	token, err := ts1.Issue(time.Now())
	require.NoError(t, err)

	_, err = ts2.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
