package webauthn

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"strings"
)

// oidFidoAAGUIDExtension is the X.509 extension carrying the attestation
// certificate's AAGUID, per the FIDO2 spec.
var oidFidoAAGUIDExtension = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

func init() {
	registerBuiltin("packed", parsePackedAttestation, validatePackedAttestation)
}

func parsePackedAttestation(attStmt map[string]interface{}) (map[string]interface{}, error) {
	alg, err := attStmtInt(attStmt, "alg")
	if err != nil {
		return nil, err
	}
	sig, err := attStmtBytes(attStmt, "sig")
	if err != nil {
		return nil, err
	}
	if _, ok := attStmt["ecdaaKeyId"]; ok {
		return nil, unsupportedErr("packed attestation via ECDAA is not supported")
	}
	certs, err := attStmtByteArray(attStmt, "x5c")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"alg": alg, "sig": sig, "certs": certs}, nil
}

func validatePackedAttestation(ctx *AuditContext, parsed map[string]interface{}) (bool, error) {
	ad := ctx.authnrData
	alg := Algorithm(parsed["alg"].(int64))
	sig := parsed["sig"].([]byte)
	certsDER := parsed["certs"].([][]byte)

	signedBytes := make([]byte, 0, len(ad.Raw)+32)
	signedBytes = append(signedBytes, ad.Raw...)
	signedBytes = append(signedBytes, ctx.clientDataHash[:]...)

	if len(certsDER) == 0 {
		key := ad.coseKey()
		if key == nil {
			return false, protocolErr("packed self attestation requires attested credential data")
		}
		if Algorithm(key.Algorithm) != alg {
			return false, algMismatchErr("packed self attestation alg %s does not match credential alg %s", alg, Algorithm(key.Algorithm))
		}
		ad.visitPublicKeyCOSE()
		if err := VerifySignature(key.Public, alg, signedBytes, sig); err != nil {
			return false, err
		}
		return true, nil
	}

	leaf, err := x509.ParseCertificate(certsDER[0])
	if err != nil {
		return false, parseErr(err, "parsing packed attestation certificate")
	}
	chain := make([]*x509.Certificate, 0, len(certsDER)-1)
	for _, der := range certsDER[1:] {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return false, parseErr(err, "parsing packed attestation chain certificate")
		}
		chain = append(chain, c)
	}

	if leaf.Version != 3 {
		return false, trustPathErr(nil, "packed attestation certificate must be X.509v3")
	}
	if !strings.Contains(strings.Join(leaf.Subject.OrganizationalUnit, ","), "Authenticator Attestation") {
		return false, trustPathErr(nil, "packed attestation certificate subject OU must be 'Authenticator Attestation'")
	}
	if leaf.IsCA {
		return false, trustPathErr(nil, "packed attestation certificate must not be a CA")
	}
	aaguid := ad.visitAAGUID()
	if certAAGUID, ok := findAAGUIDExtension(leaf); ok && !aaguid.IsZero() {
		if !bytes.Equal(certAAGUID[:], aaguid[:]) {
			return false, trustPathErr(nil, "packed attestation certificate AAGUID does not match authenticator data")
		}
	}

	roots, rootsErr := resolveTrustRoots(aaguid)
	if rootsErr != nil {
		roots = nil
	}
	if err := verifyAttestationTrustPath(leaf, chain, roots, ctx.allowedCAs, ctx.deniedCAs); err != nil {
		if rootsErr != nil && roots == nil && ctx.allowedCAs == nil {
			return false, rootsErr
		}
		return false, err
	}
	if err := VerifySignature(leaf.PublicKey, alg, signedBytes, sig); err != nil {
		return false, err
	}
	return true, nil
}

// findAAGUIDExtension extracts the 16-byte AAGUID carried in the FIDO
// attestation-certificate extension, if present. The extension value is a
// DER OCTET STRING wrapping the raw AAGUID bytes.
func findAAGUIDExtension(cert *x509.Certificate) (AAGUID, bool) {
	var out AAGUID
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidFidoAAGUIDExtension) {
			continue
		}
		var octet []byte
		if _, err := asn1.Unmarshal(ext.Value, &octet); err != nil {
			return out, false
		}
		if len(octet) != 16 {
			return out, false
		}
		copy(out[:], octet)
		return out, true
	}
	return out, false
}

// resolveTrustRoots looks up aaguid in the process-wide MDS registry and
// returns the union of its entries' attestation root certificates.
func resolveTrustRoots(aaguid AAGUID) (*x509.CertPool, error) {
	entries, err := FindMdsEntry(aaguid.String())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, trustPathErr(nil, "no metadata entry found for aaguid %s", aaguid)
	}
	pool := x509.NewCertPool()
	for _, e := range entries {
		for _, c := range e.AttestationRootCertificates {
			pool.AddCert(c)
		}
	}
	return pool, nil
}
