package webauthn

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"hash"
	"strings"

	"github.com/google/go-tpm/tpm2"
)

var tcgKpAIKCertificate = asn1.ObjectIdentifier{2, 23, 133, 8, 3}

// tpmGeneratedValue is TPM_GENERATED_VALUE, the fixed magic every
// TPMS_ATTEST structure produced by a genuine TPM carries in its first
// four bytes.
const tpmGeneratedValue = 0xFF544347

var (
	tcgAtTpmManufacturer = asn1.ObjectIdentifier{2, 23, 133, 2, 1}
	tcgAtTpmModel        = asn1.ObjectIdentifier{2, 23, 133, 2, 2}
	tcgAtTpmVersion      = asn1.ObjectIdentifier{2, 23, 133, 2, 3}
)

const oidSubjectAltName = "2.5.29.17"
const oidExtKeyUsage = "2.5.29.37"
const oidBasicConstraints = "2.5.29.19"

func init() {
	registerBuiltin("tpm", parseTPMAttestation, validateTPMAttestation)
}

func parseTPMAttestation(attStmt map[string]interface{}) (map[string]interface{}, error) {
	ver, err := attStmtString(attStmt, "ver")
	if err != nil {
		return nil, err
	}
	if ver != "2.0" {
		return nil, unsupportedErr("tpm attestation requires ver 2.0, got: %s", ver)
	}
	alg, err := attStmtInt(attStmt, "alg")
	if err != nil {
		return nil, err
	}
	if _, ok := attStmt["ecdaaKeyId"]; ok {
		return nil, unsupportedErr("tpm attestation via ECDAA is not supported")
	}
	certs, err := attStmtByteArray(attStmt, "x5c")
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, unsupportedErr("tpm attestation without x5c (ECDAA) is not supported")
	}
	sig, err := attStmtBytes(attStmt, "sig")
	if err != nil {
		return nil, err
	}
	certInfo, err := attStmtBytes(attStmt, "certInfo")
	if err != nil {
		return nil, err
	}
	pubArea, err := attStmtBytes(attStmt, "pubArea")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"alg": alg, "certs": certs, "sig": sig, "certInfo": certInfo, "pubArea": pubArea,
	}, nil
}

func validateTPMAttestation(ctx *AuditContext, parsed map[string]interface{}) (bool, error) {
	ad := ctx.authnrData
	alg := Algorithm(parsed["alg"].(int64))
	certsDER := parsed["certs"].([][]byte)
	sig := parsed["sig"].([]byte)
	certInfoBytes := parsed["certInfo"].([]byte)
	pubAreaBytes := parsed["pubArea"].([]byte)

	pubArea, err := tpm2.DecodePublic(pubAreaBytes)
	if err != nil {
		return false, parseErr(err, "decoding TPMT_PUBLIC")
	}

	key := ad.coseKey()
	if key == nil {
		return false, protocolErr("tpm attestation requires attested credential data")
	}
	ad.visitPublicKeyCOSE()

	switch pubArea.Type {
	case tpm2.AlgECC:
		if pubArea.ECCParameters == nil ||
			!bytes.Equal(pubArea.ECCParameters.Point.XRaw, padTo32(key.X)) ||
			!bytes.Equal(pubArea.ECCParameters.Point.YRaw, padTo32(key.Y)) {
			return false, trustPathErr(nil, "pubArea ECC parameters do not match credential public key")
		}
	case tpm2.AlgRSA:
		if pubArea.RSAParameters == nil || !bytes.Equal(pubArea.RSAParameters.ModulusRaw, key.N) {
			return false, trustPathErr(nil, "pubArea RSA modulus does not match credential public key")
		}
	default:
		return false, unsupportedErr("unsupported TPMT_PUBLIC type: %v", pubArea.Type)
	}

	attToBeSigned := make([]byte, 0, len(ad.Raw)+32)
	attToBeSigned = append(attToBeSigned, ad.Raw...)
	attToBeSigned = append(attToBeSigned, ctx.clientDataHash[:]...)

	certInfo, err := tpm2.DecodeAttestationData(certInfoBytes)
	if err != nil {
		return false, parseErr(err, "decoding TPMS_ATTEST")
	}
	if certInfo.Magic != tpmGeneratedValue {
		return false, protocolErr("certInfo magic is not TPM_GENERATED_VALUE")
	}
	if certInfo.Type != tpm2.TagAttestCertify {
		return false, protocolErr("certInfo type is not TPM_ST_ATTEST_CERTIFY")
	}

	h, err := hasherForAlg(alg)
	if err != nil {
		return false, err
	}
	h.Write(attToBeSigned)
	if !bytes.Equal(certInfo.ExtraData, h.Sum(nil)) {
		return false, trustPathErr(nil, "certInfo extraData does not match hash of authData||clientDataHash")
	}

	matches, err := certInfo.AttestedCertifyInfo.Name.MatchesPublic(pubArea)
	if err != nil {
		return false, trustPathErr(err, "matching certInfo name against pubArea")
	}
	if !matches {
		return false, trustPathErr(nil, "certInfo attested name does not match pubArea")
	}

	aikCert, err := x509.ParseCertificate(certsDER[0])
	if err != nil {
		return false, parseErr(err, "parsing AIK certificate")
	}

	sigAlg, err := x509SignatureAlgorithmForCOSE(alg)
	if err != nil {
		return false, err
	}
	if err := aikCert.CheckSignature(sigAlg, certInfoBytes, sig); err != nil {
		return false, sigInvalidErr(err, "AIK signature verification failed")
	}

	if aikCert.Version != 3 {
		return false, trustPathErr(nil, "AIK certificate must be X.509v3")
	}
	if aikCert.Subject.String() != "" {
		return false, trustPathErr(nil, "AIK certificate subject must be empty")
	}

	var manufacturer, model, version string
	ekuValid := false
	var constraints struct {
		IsCA       bool `asn1:"optional"`
		MaxPathLen int  `asn1:"optional,default:-1"`
	}

	for _, ext := range aikCert.Extensions {
		switch {
		case ext.Id.String() == oidSubjectAltName:
			manufacturer, model, version, err = parseTPMSANExtension(ext.Value)
			if err != nil {
				return false, parseErr(err, "parsing AIK certificate SAN")
			}
		case ext.Id.String() == oidExtKeyUsage:
			var eku []asn1.ObjectIdentifier
			if rest, err := asn1.Unmarshal(ext.Value, &eku); err != nil || len(rest) != 0 || len(eku) == 0 || !eku[0].Equal(tcgKpAIKCertificate) {
				return false, trustPathErr(nil, "AIK certificate EKU missing tcg-kp-AIKCertificate")
			}
			ekuValid = true
		case ext.Id.String() == oidBasicConstraints:
			if rest, err := asn1.Unmarshal(ext.Value, &constraints); err != nil || len(rest) != 0 {
				return false, trustPathErr(nil, "AIK certificate basic constraints malformed")
			}
		}
	}
	if manufacturer == "" || model == "" || version == "" {
		return false, trustPathErr(nil, "AIK certificate missing TPM manufacturer/model/version SAN")
	}
	if !isValidTPMManufacturer(manufacturer) {
		return false, trustPathErr(nil, "AIK certificate has unrecognized TPM manufacturer: %s", manufacturer)
	}
	if !ekuValid {
		return false, trustPathErr(nil, "AIK certificate missing extended key usage")
	}
	if constraints.IsCA {
		return false, trustPathErr(nil, "AIK certificate must not be a CA")
	}

	aaguid := ad.visitAAGUID()
	if certAAGUID, ok := findAAGUIDExtension(aikCert); ok && !aaguid.IsZero() {
		if !bytes.Equal(certAAGUID[:], aaguid[:]) {
			return false, trustPathErr(nil, "AIK certificate AAGUID does not match authenticator data")
		}
	}

	roots, rootsErr := resolveTrustRoots(aaguid)
	if rootsErr != nil {
		roots = nil
	}
	chain := make([]*x509.Certificate, 0, len(certsDER)-1)
	for _, der := range certsDER[1:] {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return false, parseErr(err, "parsing AIK certificate chain")
		}
		chain = append(chain, c)
	}
	if err := verifyAttestationTrustPath(aikCert, chain, roots, ctx.allowedCAs, ctx.deniedCAs); err != nil {
		if rootsErr != nil && roots == nil && ctx.allowedCAs == nil {
			return false, rootsErr
		}
		return false, err
	}

	return true, nil
}

func hasherForAlg(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case AlgES256, AlgRS256:
		return sha256.New(), nil
	case AlgES384, AlgRS384:
		return sha512.New384(), nil
	case AlgES512, AlgRS512:
		return sha512.New(), nil
	default:
		return nil, unsupportedErr("unsupported tpm attestation algorithm: %s", alg)
	}
}

func x509SignatureAlgorithmForCOSE(alg Algorithm) (x509.SignatureAlgorithm, error) {
	switch alg {
	case AlgES256:
		return x509.ECDSAWithSHA256, nil
	case AlgES384:
		return x509.ECDSAWithSHA384, nil
	case AlgES512:
		return x509.ECDSAWithSHA512, nil
	case AlgRS256:
		return x509.SHA256WithRSA, nil
	case AlgRS384:
		return x509.SHA384WithRSA, nil
	case AlgRS512:
		return x509.SHA512WithRSA, nil
	default:
		return 0, unsupportedErr("unsupported tpm attestation algorithm: %s", alg)
	}
}

// parseTPMSANExtension reads the TPM manufacturer/model/version directory
// names out of a SubjectAlternativeName extension, per TPMv2-EK-Profile
// §3.2.9.
func parseTPMSANExtension(value []byte) (manufacturer, model, version string, err error) {
	err = forEachGeneralName(value, func(tag int, data []byte) error {
		if tag != 4 { // directoryName
			return nil
		}
		var rdns pkix.RDNSequence
		if _, err := asn1.Unmarshal(data, &rdns); err != nil {
			return err
		}
		for _, rdn := range rdns {
			for _, atv := range rdn {
				s, ok := atv.Value.(string)
				if !ok {
					continue
				}
				switch {
				case atv.Type.Equal(tcgAtTpmManufacturer):
					manufacturer = strings.TrimPrefix(s, "id:")
				case atv.Type.Equal(tcgAtTpmModel):
					model = s
				case atv.Type.Equal(tcgAtTpmVersion):
					version = strings.TrimPrefix(s, "id:")
				}
			}
		}
		return nil
	})
	return
}

func forEachGeneralName(extension []byte, callback func(tag int, data []byte) error) error {
	var seq asn1.RawValue
	rest, err := asn1.Unmarshal(extension, &seq)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.New("trailing data after SubjectAltName extension")
	}
	if !seq.IsCompound || seq.Tag != 16 || seq.Class != 0 {
		return asn1.StructuralError{Msg: "malformed SubjectAltName sequence"}
	}
	rest = seq.Bytes
	for len(rest) > 0 {
		var v asn1.RawValue
		rest, err = asn1.Unmarshal(rest, &v)
		if err != nil {
			return err
		}
		if err := callback(v.Tag, v.Bytes); err != nil {
			return err
		}
	}
	return nil
}

var tpmManufacturers = []string{
	"414D4400", "41544D4C", "4252434D", "49424d00", "49465800", "494E5443",
	"4C454E00", "4E534D20", "4E545A00", "4E544300", "51434F4D", "534D5343",
	"53544D20", "534D534E", "534E5300", "54584E00", "57454300", "524F4343",
	"FFFFF1D0",
}

func isValidTPMManufacturer(id string) bool {
	for _, m := range tpmManufacturers {
		if m == id {
			return true
		}
	}
	return false
}
