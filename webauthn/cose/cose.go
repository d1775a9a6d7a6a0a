// Package cose decodes COSE_Key structures (RFC 8152) as embedded in
// WebAuthn attested credential data, and converts them to both Go
// crypto.PublicKey values and JWK/PEM representations for callers that
// want to persist or display them.
package cose

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// KeyType is the COSE "kty" value.
//
// https://www.rfc-editor.org/rfc/rfc8152#section-13
type KeyType int

const (
	KeyTypeOKP KeyType = 1
	KeyTypeEC2 KeyType = 2
	KeyTypeRSA KeyType = 3
)

// Curve is the COSE "crv" value for EC2/OKP keys.
type Curve int

const (
	CurveP256   Curve = 1
	CurveP384   Curve = 2
	CurveP521   Curve = 3
	CurveEd25519 Curve = 6
)

// Key is a decoded COSE_Key, normalized across the key types this package
// understands (EC2, RSA, OKP).
type Key struct {
	KeyType   KeyType
	Algorithm int
	Curve     Curve // EC2/OKP only

	// EC2
	X, Y []byte
	// RSA
	N []byte
	E int
	// OKP
	Pub []byte

	Public crypto.PublicKey
}

// ParseKey decodes a COSE_Key byte string and derives its crypto.PublicKey.
// It supports EC2 (P-256, P-384, P-521), RSA, and OKP (Ed25519). Because a
// COSE_Key may be immediately followed by further CBOR-encoded data (e.g.
// WebAuthn extensions in authenticator data), ParseKey returns the bytes
// left over after decoding exactly one CBOR item.
func ParseKey(data []byte) (*Key, []byte, error) {
	r := bytes.NewReader(data)
	dec := cbor.NewDecoder(r)

	var m map[int]cbor.RawMessage
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("decoding COSE_Key: %w", err)
	}

	kty, err := decodeInt(m, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("COSE_Key missing kty: %w", err)
	}
	alg, err := decodeInt(m, 3)
	if err != nil {
		return nil, nil, fmt.Errorf("COSE_Key missing alg: %w", err)
	}

	k := &Key{KeyType: KeyType(kty), Algorithm: alg}

	switch KeyType(kty) {
	case KeyTypeEC2:
		crv, err := decodeInt(m, -1)
		if err != nil {
			return nil, nil, fmt.Errorf("COSE_Key EC2 missing crv: %w", err)
		}
		if err := decodeBytes(m, -2, &k.X); err != nil {
			return nil, nil, fmt.Errorf("COSE_Key EC2 missing x: %w", err)
		}
		if err := decodeBytes(m, -3, &k.Y); err != nil {
			return nil, nil, fmt.Errorf("COSE_Key EC2 missing y: %w", err)
		}
		k.Curve = Curve(crv)
		curve, err := ellipticCurve(k.Curve)
		if err != nil {
			return nil, nil, err
		}
		k.Public = &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(k.X),
			Y:     new(big.Int).SetBytes(k.Y),
		}
	case KeyTypeRSA:
		if err := decodeBytes(m, -1, &k.N); err != nil {
			return nil, nil, fmt.Errorf("COSE_Key RSA missing n: %w", err)
		}
		var eBytes []byte
		if err := decodeBytes(m, -2, &eBytes); err != nil {
			return nil, nil, fmt.Errorf("COSE_Key RSA missing e: %w", err)
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 | int(b)
		}
		k.E = e
		k.Public = &rsa.PublicKey{
			N: new(big.Int).SetBytes(k.N),
			E: k.E,
		}
	case KeyTypeOKP:
		crv, err := decodeInt(m, -1)
		if err != nil {
			return nil, nil, fmt.Errorf("COSE_Key OKP missing crv: %w", err)
		}
		if err := decodeBytes(m, -2, &k.Pub); err != nil {
			return nil, nil, fmt.Errorf("COSE_Key OKP missing x: %w", err)
		}
		k.Curve = Curve(crv)
		if k.Curve != CurveEd25519 {
			return nil, nil, fmt.Errorf("unsupported OKP curve: %d", crv)
		}
		k.Public = ed25519.PublicKey(k.Pub)
	default:
		return nil, nil, fmt.Errorf("unsupported COSE key type: %d", kty)
	}

	rest := data[len(data)-r.Len():]
	return k, rest, nil
}

func ellipticCurve(c Curve) (elliptic.Curve, error) {
	switch c {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported EC2 curve: %d", c)
	}
}

func decodeInt(m map[int]cbor.RawMessage, key int) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing key %d", key)
	}
	var v int64
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return int(v), nil
}

func decodeBytes(m map[int]cbor.RawMessage, key int, out *[]byte) error {
	raw, ok := m[key]
	if !ok {
		return fmt.Errorf("missing key %d", key)
	}
	return cbor.Unmarshal(raw, out)
}

// JWK renders the key as a JSON Web Key document (RFC 7517), to the
// extent the WebAuthn spec requires: enough for a caller to persist and
// later reconstruct the public key.
func (k *Key) JWK() (map[string]interface{}, error) {
	switch k.KeyType {
	case KeyTypeEC2:
		crv, err := jwkCurveName(k.Curve)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"kty": "EC",
			"crv": crv,
			"x":   b64url(k.X),
			"y":   b64url(k.Y),
		}, nil
	case KeyTypeRSA:
		return map[string]interface{}{
			"kty": "RSA",
			"n":   b64url(k.N),
			"e":   b64url(bigEndianUint(k.E)),
		}, nil
	case KeyTypeOKP:
		return map[string]interface{}{
			"kty": "OKP",
			"crv": "Ed25519",
			"x":   b64url(k.Pub),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported COSE key type: %d", k.KeyType)
	}
}

// PEM renders the key as a PEM-encoded SubjectPublicKeyInfo block.
func (k *Key) PEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

func jwkCurveName(c Curve) (string, error) {
	switch c {
	case CurveP256:
		return "P-256", nil
	case CurveP384:
		return "P-384", nil
	case CurveP521:
		return "P-521", nil
	default:
		return "", fmt.Errorf("unsupported EC2 curve: %d", c)
	}
}

func b64url(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func bigEndianUint(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}
