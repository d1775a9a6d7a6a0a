package webauthn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
)

// parsePEMPublicKey decodes a PEM-encoded SubjectPublicKeyInfo block and
// infers the COSE algorithm implied by its key type/curve, for
// expectations.publicKey in assertion verification (spec §4.7 check 8).
func parsePEMPublicKey(pemStr string) (crypto.PublicKey, Algorithm, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, 0, parseErr(nil, "expectations.publicKey is not valid PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, 0, parseErr(err, "parsing expectations.publicKey")
	}
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return k, AlgES256, nil
		case 384:
			return k, AlgES384, nil
		case 521:
			return k, AlgES512, nil
		default:
			return nil, 0, unsupportedErr("unsupported ECDSA curve bit size: %d", k.Curve.Params().BitSize)
		}
	case *rsa.PublicKey:
		return k, AlgRS256, nil
	case ed25519.PublicKey:
		return k, AlgEdDSA, nil
	default:
		return nil, 0, unsupportedErr("unsupported public key type: %T", pub)
	}
}
