package webauthn

import (
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

// selfSignedPackedAttestationCert builds a self-signed leaf certificate
// meeting validatePackedAttestation's structural requirements (X.509v3,
// "Authenticator Attestation" OU, not a CA).
func selfSignedPackedAttestationCert(t *testing.T, priv *ecdsa.PrivateKey) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "packed test attestation", OrganizationalUnit: []string{"Authenticator Attestation"}},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          []byte{1, 2, 3, 4},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der
}

// buildPackedX5CAttestationObject assembles a packed/x5c attestationObject
// CBOR blob signed by attPriv over authData||clientDataHash.
func buildPackedX5CAttestationObject(t *testing.T, attPriv *ecdsa.PrivateKey, certDER []byte, authData, clientDataHash []byte) []byte {
	t.Helper()
	signedBytes := append(append([]byte(nil), authData...), clientDataHash...)
	sig, err := ecdsa.SignASN1(rand.Reader, attPriv, sha256Sum(signedBytes)[:])
	require.NoError(t, err)
	attObjBytes, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "packed",
		"authData": authData,
		"attStmt": map[string]interface{}{
			"alg": int64(-7),
			"sig": sig,
			"x5c": [][]byte{certDER},
		},
	})
	require.NoError(t, err)
	return attObjBytes
}

// TestVerifyAttestationPackedSelfAttestation exercises the self-attestation
// branch of the packed format (no x5c certificate chain): the credential's
// own key signs over authData || clientDataHash.
func TestVerifyAttestationPackedSelfAttestation(t *testing.T) {
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
	credID := []byte("packed-self-credential")
	authData := buildAuthDataWithRPIDHash(t, rpIDHash, flagUP|flagAT, 1, credID, coseKey)

	signedBytes := append(append([]byte(nil), authData...), clientDataHash[:]...)
	sig, err := ecdsa.SignASN1(rand.Reader, credPriv, sha256Sum(signedBytes)[:])
	require.NoError(t, err)

	attObjBytes, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "packed",
		"authData": authData,
		"attStmt": map[string]interface{}{
			"alg": int64(-7),
			"sig": sig,
		},
	})
	require.NoError(t, err)

	exp := &Expectations{Origin: origin, Challenge: challenge.Base64URL(), Factor: FactorEither}
	result, err := VerifyAttestation([]byte("raw-id"), clientDataJSON, attObjBytes, exp, DefaultRegistry, nil)
	require.NoError(t, err)
	assert.Equal(t, "packed", result.Format)
}

func TestParsePackedAttestationRejectsECDAA(t *testing.T) {
	_, err := parsePackedAttestation(map[string]interface{}{
		"alg":        int64(-7),
		"sig":        []byte("sig"),
		"ecdaaKeyId": []byte("key"),
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnsupported))
}

// TestVerifyAttestationPackedTrustsConfiguredAllowedCA exercises the
// facade's AttestationAllowedCAs fallback: with no MDS collection
// registered for the credential's (zero) AAGUID, a self-signed x5c chain
// is still trusted because its own certificate is on the configured
// allow list.
func TestVerifyAttestationPackedTrustsConfiguredAllowedCA(t *testing.T) {
	ResetMdsCollections()
	t.Cleanup(ResetMdsCollections)

	attPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	certDER := selfSignedPackedAttestationCert(t, attPriv)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)

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
	authData := buildAuthDataWithRPIDHash(t, rpIDHash, flagUP|flagAT, 1, []byte("allowed-ca-credential"), coseKey)
	attObjBytes := buildPackedX5CAttestationObject(t, attPriv, certDER, authData, clientDataHash[:])

	allowedCAs := x509.NewCertPool()
	allowedCAs.AddCert(cert)
	exp := &Expectations{
		Origin: origin, Challenge: challenge.Base64URL(), Factor: FactorEither,
		AttestationAllowedCAs: allowedCAs,
	}
	result, err := VerifyAttestation([]byte("raw-id"), clientDataJSON, attObjBytes, exp, DefaultRegistry, nil)
	require.NoError(t, err)
	assert.Equal(t, "packed", result.Format)
}

// TestVerifyAttestationPackedRejectsDeniedCA covers the veto path: even
// with the signing certificate itself on the allow list, a match on the
// deny list fails the chain outright.
func TestVerifyAttestationPackedRejectsDeniedCA(t *testing.T) {
	ResetMdsCollections()
	t.Cleanup(ResetMdsCollections)

	attPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	certDER := selfSignedPackedAttestationCert(t, attPriv)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)

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
	authData := buildAuthDataWithRPIDHash(t, rpIDHash, flagUP|flagAT, 1, []byte("denied-ca-credential"), coseKey)
	attObjBytes := buildPackedX5CAttestationObject(t, attPriv, certDER, authData, clientDataHash[:])

	allowedCAs := x509.NewCertPool()
	allowedCAs.AddCert(cert)
	exp := &Expectations{
		Origin: origin, Challenge: challenge.Base64URL(), Factor: FactorEither,
		AttestationAllowedCAs: allowedCAs,
		AttestationDeniedCAs:  []*x509.Certificate{cert},
	}
	_, err = VerifyAttestation([]byte("raw-id"), clientDataJSON, attObjBytes, exp, DefaultRegistry, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTrustPath))
}
