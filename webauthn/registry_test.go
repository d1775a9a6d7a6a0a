package webauthn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	parse := func(attStmt map[string]interface{}) (map[string]interface{}, error) { return attStmt, nil }
	validate := func(ctx *AuditContext, parsed map[string]interface{}) (bool, error) { return true, nil }

	require.NoError(t, r.Add("foo", parse, validate))
	err := r.Add("foo", parse, validate)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDuplicate))
}

func TestRegistryParseUnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse("nonexistent", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProtocolError))
}

// TestRegistryParseRejectsNilResult covers scenario 5: a parser that
// violates the plugin contract by returning a nil map alongside a nil
// error surfaces as PROTOCOL_ERROR with the exact advertised message.
func TestRegistryParseRejectsNilResult(t *testing.T) {
	r := NewRegistry()
	parse := func(attStmt map[string]interface{}) (map[string]interface{}, error) { return nil, nil }
	validate := func(ctx *AuditContext, parsed map[string]interface{}) (bool, error) { return true, nil }
	require.NoError(t, r.Add("foo", parse, validate))

	_, err := r.Parse("foo", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProtocolError))
	assert.Equal(t, "foo parseFn did not return a Map", err.Error())
}

func TestRegistryValidateRejectsFalseWithoutError(t *testing.T) {
	r := NewRegistry()
	parse := func(attStmt map[string]interface{}) (map[string]interface{}, error) { return attStmt, nil }
	validate := func(ctx *AuditContext, parsed map[string]interface{}) (bool, error) { return false, nil }
	require.NoError(t, r.Add("foo", parse, validate))

	err := r.Validate("foo", nil, map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProtocolError))
	assert.Equal(t, "foo validateFn did not return 'true'", err.Error())
}

func TestDefaultRegistryHasBuiltinFormats(t *testing.T) {
	for _, f := range []string{"none", "fido-u2f", "packed", "tpm", "android-safetynet"} {
		assert.True(t, DefaultRegistry.Has(f), "expected built-in format %s to be registered", f)
	}
}
