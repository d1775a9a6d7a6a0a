package webauthn

import (
	"github.com/fxamacker/cbor/v2"
)

// AttestationObject is the CBOR map an authenticator returns during
// registration: { fmt: text, authData: bytes, attStmt: map }. See spec §3.
type AttestationObject struct {
	Format      string
	RawAuthData []byte
	AttStmt     map[string]interface{}

	AuthData *AuthenticatorData
}

type rawAttestationObject struct {
	Format  string                 `cbor:"fmt"`
	AuthData []byte                `cbor:"authData"`
	AttStmt map[string]interface{} `cbor:"attStmt"`
}

// ParseAttestationObject decodes and fully parses an attestationObject,
// including its nested authenticator data.
func ParseAttestationObject(raw []byte) (*AttestationObject, error) {
	var ao rawAttestationObject
	if err := cbor.Unmarshal(raw, &ao); err != nil {
		return nil, parseErr(err, "decoding attestation object")
	}
	if ao.Format == "" {
		return nil, parseErr(nil, "attestation object missing fmt")
	}
	if len(ao.AuthData) == 0 {
		return nil, parseErr(nil, "attestation object missing authData")
	}

	authData, err := ParseAuthenticatorData(ao.AuthData)
	if err != nil {
		return nil, err
	}

	return &AttestationObject{
		Format:      ao.Format,
		RawAuthData: ao.AuthData,
		AttStmt:     ao.AttStmt,
		AuthData:    authData,
	}, nil
}
