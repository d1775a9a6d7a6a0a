package webauthn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallengeRejectsShortSize(t *testing.T) {
	_, err := NewChallenge(16, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgRange))
}

func TestNewChallengeWithoutExtraData(t *testing.T) {
	c, err := NewChallenge(defaultChallengeSize, nil)
	require.NoError(t, err)
	assert.Len(t, c.Value, defaultChallengeSize)
	assert.Equal(t, c.Raw, c.Value)

	decoded, err := decodeBase64URLChallenge(c.Base64URL())
	require.NoError(t, err)
	assert.Equal(t, c.Value, decoded)
}

func TestNewChallengeBindsExtraData(t *testing.T) {
	c, err := NewChallenge(minChallengeSize, []byte("session-42"))
	require.NoError(t, err)

	assert.NotEqual(t, c.Raw, c.Value, "bound challenge value must differ from the raw random bytes")
	assert.Len(t, c.Value, 32, "bound value is a SHA-256 digest")

	want := sha256Sum(append(append([]byte(nil), c.Raw...), []byte("session-42")...))
	assert.Equal(t, want[:], c.Value)
}

func TestDecodeBase64URLChallengeRejectsInvalidInput(t *testing.T) {
	_, err := decodeBase64URLChallenge("not base64url!!")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParseError))
}
