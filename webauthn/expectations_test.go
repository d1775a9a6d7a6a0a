package webauthn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExpectationsRejectsUnknownKey(t *testing.T) {
	_, err := BuildExpectations(map[string]interface{}{
		"origin": "https://example.com", "challenge": "abc", "factor": "either",
		"bogus": true,
	}, false)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgInvalid))
}

func TestBuildExpectationsRequiresOrigin(t *testing.T) {
	_, err := BuildExpectations(map[string]interface{}{
		"challenge": "abc", "factor": "either",
	}, false)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgMissing))
}

func TestBuildExpectationsAcceptsOriginPredicate(t *testing.T) {
	pred := func(origin string) bool { return origin == "https://example.com" }
	exp, err := BuildExpectations(map[string]interface{}{
		"origin": pred, "challenge": "abc", "factor": "either",
	}, false)
	require.NoError(t, err)
	assert.True(t, exp.CheckOrigin("https://example.com"))
	assert.False(t, exp.CheckOrigin("https://evil.example"))
}

func TestBuildExpectationsRejectsBadFactor(t *testing.T) {
	_, err := BuildExpectations(map[string]interface{}{
		"origin": "https://example.com", "challenge": "abc", "factor": "third",
	}, false)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgType))
}

// TestBuildExpectationsAssertionNullUserHandle covers the second half of
// scenario 4: userHandle explicitly present-but-null must be distinguished
// from userHandle entirely absent.
func TestBuildExpectationsAssertionNullUserHandle(t *testing.T) {
	exp, err := BuildExpectations(map[string]interface{}{
		"origin": "https://localhost:8443", "challenge": "abc", "factor": "either",
		"publicKey": "pem", "prevCounter": 362, "userHandle": nil,
	}, true)
	require.NoError(t, err)
	assert.True(t, exp.HasUserHandle)
	assert.Nil(t, exp.UserHandle)
}

func TestBuildExpectationsAssertionMissingUserHandleIsAnError(t *testing.T) {
	_, err := BuildExpectations(map[string]interface{}{
		"origin": "https://localhost:8443", "challenge": "abc", "factor": "either",
		"publicKey": "pem", "prevCounter": 362,
	}, true)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgMissing))
}

func TestBuildExpectationsAssertionRequiresPublicKey(t *testing.T) {
	_, err := BuildExpectations(map[string]interface{}{
		"origin": "https://localhost:8443", "challenge": "abc", "factor": "either",
		"prevCounter": 362, "userHandle": nil,
	}, true)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgMissing))
}
