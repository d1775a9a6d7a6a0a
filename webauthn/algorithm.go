package webauthn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

// Algorithm is a COSEAlgorithmIdentifier: a signed integer naming a public
// key scheme together with the hash function used to sign over it.
//
// https://www.w3.org/TR/webauthn-3/#typedefdef-cosealgorithmidentifier
type Algorithm int

// The algorithms this package knows how to verify. This is also the set
// eligible for a RelyingPartyConfig's CryptoParams.
const (
	AlgES256 Algorithm = -7
	AlgES384 Algorithm = -35
	AlgES512 Algorithm = -36
	AlgEdDSA Algorithm = -8
	AlgRS256 Algorithm = -257
	AlgRS384 Algorithm = -258
	AlgRS512 Algorithm = -259
)

var algStrings = map[Algorithm]string{
	AlgES256: "ES256",
	AlgES384: "ES384",
	AlgES512: "ES512",
	AlgEdDSA: "EdDSA",
	AlgRS256: "RS256",
	AlgRS384: "RS384",
	AlgRS512: "RS512",
}

// String returns a human readable representation of the algorithm.
func (a Algorithm) String() string {
	if s, ok := algStrings[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// VerifySignature checks a raw signature for a given COSE algorithm over
// data, using pub as the verification key. This is exported so attestation
// format plugins outside this package can reuse it.
func VerifySignature(pub crypto.PublicKey, alg Algorithm, data, sig []byte) error {
	switch alg {
	case AlgES256:
		return verifyECDSA(pub, sha256.New(), data, sig)
	case AlgES384:
		return verifyECDSA(pub, sha512.New384(), data, sig)
	case AlgES512:
		return verifyECDSA(pub, sha512.New(), data, sig)
	case AlgEdDSA:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return algMismatchErr("invalid public key type for EdDSA algorithm: %T", pub)
		}
		if !ed25519.Verify(edPub, data, sig) {
			return sigInvalidErr(nil, "invalid EdDSA signature")
		}
		return nil
	case AlgRS256:
		return verifyRSA(pub, crypto.SHA256, sha256.New(), data, sig)
	case AlgRS384:
		return verifyRSA(pub, crypto.SHA384, sha512.New384(), data, sig)
	case AlgRS512:
		return verifyRSA(pub, crypto.SHA512, sha512.New(), data, sig)
	default:
		return unsupportedErr("unsupported signing algorithm: %d", int(alg))
	}
}

func verifyECDSA(pub crypto.PublicKey, h hashHasher, data, sig []byte) error {
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return algMismatchErr("invalid public key type for ECDSA algorithm: %T", pub)
	}
	h.Write(data)
	if !ecdsa.VerifyASN1(ecdsaPub, h.Sum(nil), sig) {
		return sigInvalidErr(nil, "invalid ECDSA signature")
	}
	return nil
}

func verifyRSA(pub crypto.PublicKey, ch crypto.Hash, h hashHasher, data, sig []byte) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return algMismatchErr("invalid public key type for RSA algorithm: %T", pub)
	}
	h.Write(data)
	if err := rsa.VerifyPKCS1v15(rsaPub, ch, h.Sum(nil), sig); err != nil {
		return sigInvalidErr(err, "invalid RSA signature")
	}
	return nil
}

// hashHasher is the subset of hash.Hash used above, named to avoid pulling
// in the hash package just for the type.
type hashHasher interface {
	Write([]byte) (int, error)
	Sum([]byte) []byte
}
