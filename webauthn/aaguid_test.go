package webauthn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAAGUIDRoundTripsHyphenated(t *testing.T) {
	var a AAGUID
	require.NoError(t, a.UnmarshalText([]byte("ee882879-721c-4913-9775-3dd939421bbf")))
	assert.Equal(t, "ee882879-721c-4913-9775-3dd939421bbf", a.String())
	assert.False(t, a.IsZero())
}

func TestAAGUIDAcceptsBareHex(t *testing.T) {
	var a AAGUID
	require.NoError(t, a.UnmarshalText([]byte("ee882879721c491397753dd939421bbf")))
	assert.Equal(t, "ee882879-721c-4913-9775-3dd939421bbf", a.String())
}

func TestAAGUIDIsZero(t *testing.T) {
	var a AAGUID
	assert.True(t, a.IsZero())
}

func TestAAGUIDRejectsGarbage(t *testing.T) {
	var a AAGUID
	err := a.UnmarshalText([]byte("not-an-aaguid"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParseError))
}
