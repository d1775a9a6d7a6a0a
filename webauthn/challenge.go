package webauthn

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// minChallengeSize is the minimum permitted challengeSize, per spec §4.1.
const minChallengeSize = 32

// defaultChallengeSize is used when RelyingPartyConfig.ChallengeSize is
// left at its zero value.
const defaultChallengeSize = 64

// Challenge is a cryptographically random byte string issued by the
// relying party and returned, signed, by the authenticator. See spec §3.
//
// When constructed with extra application data (extraData), Raw holds the
// original random bytes and Value holds SHA-256(Raw || extraData); both
// are exposed so the caller can later reconstruct the binding. Otherwise
// Value == Raw.
type Challenge struct {
	Value []byte
	Raw   []byte
}

// NewChallenge generates a Challenge of size bytes, optionally binding it
// to extraData via SHA-256(raw || extraData).
func NewChallenge(size int, extraData []byte) (Challenge, error) {
	if size < minChallengeSize {
		return Challenge{}, argRangeErr("challengeSize must be at least %d, got: %d", minChallengeSize, size)
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return Challenge{}, parseErr(err, "generating challenge")
	}
	if len(extraData) == 0 {
		return Challenge{Value: raw, Raw: raw}, nil
	}
	h := sha256.New()
	h.Write(raw)
	h.Write(extraData)
	return Challenge{Value: h.Sum(nil), Raw: raw}, nil
}

// Base64URL returns the unpadded base64url encoding of the challenge
// value, as placed in PublicKeyCredentialCreationOptions/
// PublicKeyCredentialRequestOptions.
func (c Challenge) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(c.Value)
}

// decodeBase64URLChallenge decodes a base64url-encoded challenge as
// carried in clientDataJSON.
func decodeBase64URLChallenge(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, parseErr(err, "invalid base64url challenge")
	}
	return b, nil
}

// sha256Sum is a small wrapper so callers don't each import crypto/sha256
// just to hash a byte slice.
func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}
