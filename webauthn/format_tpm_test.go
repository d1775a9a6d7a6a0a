package webauthn

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherForAlg(t *testing.T) {
	h, err := hasherForAlg(AlgES256)
	require.NoError(t, err)
	assert.Equal(t, 32, h.Size())

	_, err = hasherForAlg(AlgEdDSA)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnsupported))
}

func TestX509SignatureAlgorithmForCOSE(t *testing.T) {
	alg, err := x509SignatureAlgorithmForCOSE(AlgRS256)
	require.NoError(t, err)
	assert.Equal(t, x509.SHA256WithRSA, alg)

	_, err = x509SignatureAlgorithmForCOSE(AlgEdDSA)
	require.Error(t, err)
}

func TestIsValidTPMManufacturer(t *testing.T) {
	assert.True(t, isValidTPMManufacturer("49424d00")) // IBM
	assert.False(t, isValidTPMManufacturer("DEADBEEF"))
}

// buildTPMSANExtension constructs a SubjectAltName extension value carrying
// a single directoryName general name with the TPM manufacturer/model/
// version attributes, per TPMv2-EK-Profile §3.2.9.
func buildTPMSANExtension(t *testing.T) []byte {
	t.Helper()
	rdn := pkix.RDNSequence{
		pkix.RelativeDistinguishedNameSET{
			{Type: tcgAtTpmManufacturer, Value: "id:49424D00"},
		},
		pkix.RelativeDistinguishedNameSET{
			{Type: tcgAtTpmModel, Value: "SLB9670"},
		},
		pkix.RelativeDistinguishedNameSET{
			{Type: tcgAtTpmVersion, Value: "id:00010002"},
		},
	}
	dirName, err := asn1.Marshal(rdn)
	require.NoError(t, err)

	generalName := asn1.RawValue{Class: 2, Tag: 4, IsCompound: true, Bytes: dirName}
	generalNameBytes, err := asn1.Marshal(generalName)
	require.NoError(t, err)

	san := asn1.RawValue{Class: 0, Tag: 16, IsCompound: true, Bytes: generalNameBytes}
	sanBytes, err := asn1.Marshal(san)
	require.NoError(t, err)
	return sanBytes
}

func TestParseTPMSANExtension(t *testing.T) {
	manufacturer, model, version, err := parseTPMSANExtension(buildTPMSANExtension(t))
	require.NoError(t, err)
	assert.Equal(t, "49424D00", manufacturer)
	assert.Equal(t, "SLB9670", model)
	assert.Equal(t, "00010002", version)
}
