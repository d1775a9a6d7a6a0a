package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedECDSACert(t *testing.T, priv *ecdsa.PrivateKey) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "fido-u2f test attestation"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der
}

func TestVerifyAttestationFidoU2FHappyPath(t *testing.T) {
	attPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	certDER := selfSignedECDSACert(t, attPriv)

	credPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	coseKey := buildCOSEP256Key(t, &credPriv.PublicKey)

	challenge, err := NewChallenge(defaultChallengeSize, nil)
	require.NoError(t, err)
	origin := "https://localhost:8443"
	clientDataJSON := []byte(`{"type":"webauthn.create","challenge":"` + challenge.Base64URL() + `","origin":"` + origin + `"}`)
	cd, err := ParseClientData(clientDataJSON)
	require.NoError(t, err)
	clientDataHash := cd.Hash()

	rpIDHash := sha256Sum([]byte(originHost(origin)))
	credID := []byte("u2f-credential")
	authData := buildAuthDataWithRPIDHash(t, rpIDHash, flagUP|flagAT, 1, credID, coseKey)

	x := credPriv.PublicKey.X.FillBytes(make([]byte, 32))
	y := credPriv.PublicKey.Y.FillBytes(make([]byte, 32))
	u2fPub := append([]byte{0x04}, append(append([]byte(nil), x...), y...)...)
	signedBuf := bytes.NewBuffer(nil)
	signedBuf.WriteByte(0x00)
	signedBuf.Write(rpIDHash[:])
	signedBuf.Write(clientDataHash[:])
	signedBuf.Write(credID)
	signedBuf.Write(u2fPub)
	sig, err := ecdsa.SignASN1(rand.Reader, attPriv, sha256Sum(signedBuf.Bytes())[:])
	require.NoError(t, err)

	attObjBytes, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "fido-u2f",
		"authData": authData,
		"attStmt": map[string]interface{}{
			"x5c": [][]byte{certDER},
			"sig": sig,
		},
	})
	require.NoError(t, err)

	exp := &Expectations{Origin: origin, Challenge: challenge.Base64URL(), Factor: FactorEither}
	result, err := VerifyAttestation([]byte("raw-id"), clientDataJSON, attObjBytes, exp, DefaultRegistry, nil)
	require.NoError(t, err)
	assert.Equal(t, "fido-u2f", result.Format)
}

func TestVerifyAttestationFidoU2FRejectsWrongCertCount(t *testing.T) {
	_, err := parseFidoU2FAttestation(map[string]interface{}{
		"x5c": []interface{}{},
		"sig": []byte("sig"),
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindArgInvalid))
}
