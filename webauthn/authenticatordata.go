package webauthn

import (
	"bytes"
	"crypto"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"

	"github.com/jedrivisser/fido2-lib/webauthn/cose"
)

const (
	rpIDHashLen = 32
	flagsLen    = 1
	counterLen  = 4
	aaguidLen   = 16
	credIDLenLen = 2
)

// AuthenticatorData is the parsed form of the fixed+variable binary blob
// produced by an authenticator, described in spec §3/§4.3:
//
//	rpIdHash (32) || flags (1) || counter (4) ||
//	  [attestedCredentialData] || [extensions]
type AuthenticatorData struct {
	Raw []byte

	RPIDHash [32]byte
	Flags    Flags
	Counter  uint32

	HasAttestedCredentialData bool
	AAGUID                    AAGUID
	CredentialID              []byte
	CredentialPublicKeyCOSE   []byte
	credentialKey             *cose.Key

	HasExtensions bool
	Extensions    []byte

	j *journal
}

// ParseAuthenticatorData decodes raw into its fields. Any trailing bytes
// left over after all declared sections are consumed is a parse error; the
// public-key region's length is implicit and is discovered by
// length-aware CBOR decoding of the remaining bytes, per spec §3.
func ParseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	ad := &AuthenticatorData{Raw: append([]byte(nil), raw...)}

	b := raw
	if len(b) < rpIDHashLen {
		return nil, parseErr(nil, "authenticator data too short for rpIdHash")
	}
	copy(ad.RPIDHash[:], b[:rpIDHashLen])
	b = b[rpIDHashLen:]

	if len(b) < flagsLen {
		return nil, parseErr(nil, "authenticator data too short for flags")
	}
	ad.Flags = Flags(b[0])
	b = b[flagsLen:]

	if len(b) < counterLen {
		return nil, parseErr(nil, "authenticator data too short for counter")
	}
	ad.Counter = binary.BigEndian.Uint32(b[:counterLen])
	b = b[counterLen:]

	present := []string{"rpIdHash", "flags", "counter"}

	if ad.Flags.AttestedCredentialData() {
		ad.HasAttestedCredentialData = true
		if len(b) < aaguidLen {
			return nil, parseErr(nil, "authenticator data too short for aaguid")
		}
		copy(ad.AAGUID[:], b[:aaguidLen])
		b = b[aaguidLen:]

		if len(b) < credIDLenLen {
			return nil, parseErr(nil, "authenticator data too short for credential id length")
		}
		credIDLen := int(binary.BigEndian.Uint16(b[:credIDLenLen]))
		b = b[credIDLenLen:]

		if len(b) < credIDLen {
			return nil, parseErr(nil, "authenticator data too short for credential id")
		}
		ad.CredentialID = append([]byte(nil), b[:credIDLen]...)
		b = b[credIDLen:]

		key, rest, err := cose.ParseKey(b)
		if err != nil {
			return nil, parseErr(err, "decoding credential public key")
		}
		ad.credentialKey = key
		ad.CredentialPublicKeyCOSE = b[:len(b)-len(rest)]
		b = rest

		present = append(present, "aaguid", "credId", "credentialPublicKeyCose", "credentialPublicKeyJwk", "credentialPublicKeyPem")
	}

	if ad.Flags.Extensions() {
		ad.HasExtensions = true
		var ext cbor.RawMessage
		dec := cbor.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&ext); err != nil {
			return nil, parseErr(err, "decoding extension data")
		}
		ad.Extensions = []byte(ext)
		b = b[len(ext):]
		present = append(present, "webAuthnExtensions")
	}

	if len(b) != 0 {
		return nil, parseErr(nil, "authenticator data has %d trailing bytes", len(b))
	}

	ad.j = newJournal(present...)
	return ad, nil
}

// coseKey exposes the parsed COSE key to attestation-format plugins in this
// package that need more than crypto.PublicKey (e.g. fido-u2f needs the raw
// X/Y coordinates to rebuild the U2F uncompressed point format).
func (ad *AuthenticatorData) coseKey() *cose.Key { return ad.credentialKey }

// Algorithm returns the COSE algorithm of the attested credential public
// key. Only valid when HasAttestedCredentialData.
func (ad *AuthenticatorData) Algorithm() Algorithm {
	if ad.credentialKey == nil {
		return 0
	}
	return Algorithm(ad.credentialKey.Algorithm)
}

// PublicKey returns the parsed crypto.PublicKey of the attested credential.
// Only valid when HasAttestedCredentialData.
func (ad *AuthenticatorData) PublicKey() crypto.PublicKey {
	if ad.credentialKey == nil {
		return nil
	}
	return ad.credentialKey.Public
}

// PublicKeyJWK renders the attested credential public key as a JWK map.
func (ad *AuthenticatorData) PublicKeyJWK() (map[string]interface{}, error) {
	if ad.credentialKey == nil {
		return nil, protocolErr("authenticator data has no attested credential data")
	}
	return ad.credentialKey.JWK()
}

// PublicKeyPEM renders the attested credential public key as a PEM block.
func (ad *AuthenticatorData) PublicKeyPEM() (string, error) {
	if ad.credentialKey == nil {
		return "", protocolErr("authenticator data has no attested credential data")
	}
	return ad.credentialKey.PEM()
}

// journal-visiting accessors used by the audit engine; these are in
// addition to the plain fields above, which are read directly by format
// plugins that don't need visit tracking (they operate before the audit
// engine runs its completeness check).

func (ad *AuthenticatorData) visitRPIDHash() [32]byte { ad.j.visit("rpIdHash"); return ad.RPIDHash }
func (ad *AuthenticatorData) visitFlags() Flags       { ad.j.visit("flags"); return ad.Flags }
func (ad *AuthenticatorData) visitCounter() uint32    { ad.j.visit("counter"); return ad.Counter }
func (ad *AuthenticatorData) visitAAGUID() AAGUID {
	ad.j.visit("aaguid")
	return ad.AAGUID
}
func (ad *AuthenticatorData) visitCredID() []byte {
	ad.j.visit("credId")
	return ad.CredentialID
}
func (ad *AuthenticatorData) visitPublicKeyCOSE() []byte {
	ad.j.visit("credentialPublicKeyCose")
	return ad.CredentialPublicKeyCOSE
}
func (ad *AuthenticatorData) visitPublicKeyJWK() (map[string]interface{}, error) {
	ad.j.visit("credentialPublicKeyJwk")
	return ad.PublicKeyJWK()
}
func (ad *AuthenticatorData) visitPublicKeyPEM() (string, error) {
	ad.j.visit("credentialPublicKeyPem")
	return ad.PublicKeyPEM()
}
func (ad *AuthenticatorData) visitExtensions() []byte {
	ad.j.visit("webAuthnExtensions")
	return ad.Extensions
}
