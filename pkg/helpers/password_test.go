package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("pw123secret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "pw123secret", hash)

	assert.True(t, CompareHashAndPassword(hash, "pw123secret"))
	assert.False(t, CompareHashAndPassword(hash, "pw123secreT"))
	assert.False(t, CompareHashAndPassword(hash, ""))
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)

	// bcrypt salts per call, so two digests of the same input differ while
	// both still verify.
	assert.NotEqual(t, h1, h2)
	assert.True(t, CompareHashAndPassword(h1, "same-password"))
	assert.True(t, CompareHashAndPassword(h2, "same-password"))
}
