package webauthn

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// AAGUID is the 16-byte authenticator model identifier carried in
// attested credential data.
//
// https://www.w3.org/TR/webauthn-3/#aaguid
type AAGUID [16]byte

// String renders the AAGUID in canonical hyphenated UUID form.
func (a AAGUID) String() string {
	return uuid.UUID(a).String()
}

// MarshalText implements encoding.TextMarshaler.
func (a AAGUID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting both
// hyphenated and bare-hex representations so it round-trips MDS entries
// either way.
func (a *AAGUID) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if !strings.Contains(s, "-") && len(s) == 32 {
		raw, err := hex.DecodeString(s)
		if err != nil {
			return parseErr(err, "invalid aaguid %q", s)
		}
		copy(a[:], raw)
		return nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return parseErr(err, "invalid aaguid %q", s)
	}
	*a = AAGUID(u)
	return nil
}

// IsZero reports whether the AAGUID is all zeroes, as used by
// authenticators that do not identify a model (e.g. self attestation).
func (a AAGUID) IsZero() bool {
	return a == AAGUID{}
}
