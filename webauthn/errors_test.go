package webauthn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKindMatchesWrappedError(t *testing.T) {
	err := parseErr(errors.New("boom"), "decoding widget")
	assert.True(t, IsKind(err, KindParseError))
	assert.False(t, IsKind(err, KindSigInvalid))
}

func TestIsKindFalseForPlainError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindParseError))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := parseErr(errors.New("underlying"), "decoding widget")
	assert.Contains(t, err.Error(), "decoding widget")
	assert.Contains(t, err.Error(), "underlying")
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := argTypeErr("expected timeout to be number, got: %v", "foo")
	assert.Equal(t, "expected timeout to be number, got: foo", err.Error())
}
