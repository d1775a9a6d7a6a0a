package webauthn

import (
	"crypto/ecdsa"
	"crypto/x509"
)

func init() {
	registerBuiltin("fido-u2f", parseFidoU2FAttestation, validateFidoU2FAttestation)
}

// parseFidoU2FAttestation extracts the single required certificate and the
// DER-encoded ECDSA signature, per spec §4.5.2.
func parseFidoU2FAttestation(attStmt map[string]interface{}) (map[string]interface{}, error) {
	certs, err := attStmtByteArray(attStmt, "x5c")
	if err != nil {
		return nil, err
	}
	if len(certs) != 1 {
		return nil, argInvalidErr("fido-u2f attestation requires exactly one certificate, got: %d", len(certs))
	}
	sig, err := attStmtBytes(attStmt, "sig")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"cert": certs[0], "sig": sig}, nil
}

// validateFidoU2FAttestation verifies the signature over the U2F
// registration-response buffer: 0x00 || rpIdHash || clientDataHash ||
// credentialId || 0x04||x||y.
func validateFidoU2FAttestation(ctx *AuditContext, parsed map[string]interface{}) (bool, error) {
	certDER := parsed["cert"].([]byte)
	sig := parsed["sig"].([]byte)

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return false, parseErr(err, "parsing fido-u2f attestation certificate")
	}
	ecdsaPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return false, algMismatchErr("fido-u2f attestation certificate is not an ECDSA key: %T", cert.PublicKey)
	}

	ad := ctx.authnrData
	key := ad.coseKey()
	if key == nil {
		return false, protocolErr("fido-u2f attestation requires attested credential data")
	}
	if Algorithm(key.Algorithm) != AlgES256 {
		return false, algMismatchErr("fido-u2f requires a P-256 credential key, got algorithm: %d", key.Algorithm)
	}

	rpIDHash := ad.visitRPIDHash()
	credID := ad.visitCredID()
	ad.visitPublicKeyCOSE()

	pubU2F := make([]byte, 0, 65)
	pubU2F = append(pubU2F, 0x04)
	pubU2F = append(pubU2F, padTo32(key.X)...)
	pubU2F = append(pubU2F, padTo32(key.Y)...)

	buf := make([]byte, 0, 1+32+32+len(credID)+65)
	buf = append(buf, 0x00)
	buf = append(buf, rpIDHash[:]...)
	buf = append(buf, ctx.clientDataHash[:]...)
	buf = append(buf, credID...)
	buf = append(buf, pubU2F...)

	if err := VerifySignature(ecdsaPub, AlgES256, buf, sig); err != nil {
		return false, err
	}
	return true, nil
}

func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
