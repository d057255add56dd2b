package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestEncryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt([]byte("EAAB-token"), []byte(testSecret))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "EAAB-token")

	again, err := Encrypt([]byte("EAAB-token"), []byte(testSecret))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := Decrypt(sealed, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "EAAB-token", plain)
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), []byte(testSecret))
	require.NoError(t, err)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", []byte(testSecret))
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", "pinterest", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "pinterest", claims.Platform)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenRejected(t *testing.T) {
	expired, err := GenerateToken(testSecret, "user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testSecret, expired)
	assert.Error(t, err)

	valid, err := GenerateToken(testSecret, "user-1", "", time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("another-secret", valid)
	assert.Error(t, err)
}
