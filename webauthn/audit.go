package webauthn

import (
	"bytes"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultSafetyNetWindow is the default tolerance around "now" for
// android-safetynet's timestampMs check, per spec §4.5.5.
const defaultSafetyNetWindow = time.Minute

// AuditContext is the handle the audit engine and attestation-format
// validators use to read the in-progress registration/assertion and mark
// which fields of it have been examined. Format plugins receive one during
// Validate so they can pull whatever authenticator-data fields they need
// through the visiting accessors instead of the raw struct, keeping the
// completeness journal accurate.
type AuditContext struct {
	authnrData     *AuthenticatorData
	clientData     *ClientData
	clientDataHash [32]byte

	safetyNetWindow time.Duration
	log             logrus.FieldLogger

	allowedCAs *x509.CertPool
	deniedCAs  []*x509.Certificate
}

func newAuditContext(ad *AuthenticatorData, cd *ClientData, safetyNetWindow time.Duration, log logrus.FieldLogger) *AuditContext {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if safetyNetWindow <= 0 {
		safetyNetWindow = defaultSafetyNetWindow
	}
	return &AuditContext{authnrData: ad, clientData: cd, clientDataHash: cd.Hash(), safetyNetWindow: safetyNetWindow, log: log}
}

// AuthenticatorData returns the parsed authenticator data under audit.
func (c *AuditContext) AuthenticatorData() *AuthenticatorData { return c.authnrData }

// ClientData returns the parsed client data under audit.
func (c *AuditContext) ClientData() *ClientData { return c.clientData }

// ClientDataHash returns SHA-256(clientDataJSON), the value signed over by
// fido-u2f and packed self/x5c attestation.
func (c *AuditContext) ClientDataHash() [32]byte { return c.clientDataHash }

// Log returns a logger scoped to the current audit, for format plugins
// that want to record non-fatal detail (e.g. a metadata lookup miss).
func (c *AuditContext) Log() logrus.FieldLogger { return c.log }

// runAudit executes the checks shared by attestation and assertion against
// a parsed response. wantType is the clientData type the operation
// requires (webauthn.create or webauthn.get).
//
// The checks run in this order: type check, challenge check, origin check,
// token-binding visit (reported, not verified), rpIdHash check, and flags
// check per exp.Factor (first: UP and UV; second: UP without UV; either:
// UP). The counter and, when present, the extensions are then marked
// visited without being enforced here. Counter comparison, userHandle,
// signature/attestation-statement verification and the audit-completeness
// check are run by VerifyAttestation/VerifyAssertion after this returns.
func runAudit(ctx *AuditContext, exp *Expectations, wantType ClientDataType) error {
	if ctx.clientData.Type() != wantType {
		return protocolErr("clientData type mismatch: expected %s, got %s", wantType, ctx.clientData.Type())
	}

	gotChallenge, err := decodeBase64URLChallenge(ctx.clientData.Challenge())
	if err != nil {
		return parseErr(err, "decoding clientData challenge")
	}
	wantChallenge, err := decodeBase64URLChallenge(exp.Challenge)
	if err != nil {
		return argInvalidErr("expectations challenge is not valid base64url: %v", err)
	}
	if subtle.ConstantTimeCompare(gotChallenge, wantChallenge) != 1 {
		return protocolErr("challenge mismatch")
	}

	if !exp.CheckOrigin(ctx.clientData.Origin()) {
		return protocolErr("origin mismatch: got %s", ctx.clientData.Origin())
	}

	// Token binding, when present, is reported but its contents are not
	// independently verifiable by this library; a caller with binding
	// requirements should inspect ClientData().TokenBinding() directly.
	ctx.clientData.TokenBinding()

	rpID := exp.RPID
	if rpID == "" {
		rpID = originHost(ctx.clientData.Origin())
	}
	rpIDHash := ctx.authnrData.visitRPIDHash()
	want := sha256Sum([]byte(rpID))
	if !bytes.Equal(rpIDHash[:], want[:]) {
		return protocolErr("rpIdHash mismatch for rpId %s", rpID)
	}

	flags := ctx.authnrData.visitFlags()
	switch exp.Factor {
	case FactorFirst:
		if !flags.UserPresent() || !flags.UserVerified() {
			return protocolErr("factor 'first' requires user presence and user verification")
		}
	case FactorSecond:
		if !flags.UserPresent() || flags.UserVerified() {
			return protocolErr("factor 'second' requires user presence without user verification")
		}
	case FactorEither:
		if !flags.UserPresent() {
			return protocolErr("user presence flag not set")
		}
	}

	ctx.authnrData.visitCounter()
	if ctx.authnrData.HasExtensions {
		ctx.authnrData.visitExtensions()
	}

	return nil
}

// originHost extracts the host component of an origin string (e.g.
// "https://example.com:8443" -> "example.com"), used as the default rpId
// when expectations.rpId is left unset.
func originHost(origin string) string {
	s := origin
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, ":/"); i >= 0 {
		s = s[:i]
	}
	return s
}

// verifyAttestationTrustPath checks a leaf certificate's chain against a
// set of trusted roots, as used by packed/tpm x5c and MDS TOC
// verification (spec §4.5.3-4.5.4, §4.6). A chain that uses
// any certificate on deniedCAs fails outright, regardless of whether it
// would otherwise verify. Absent a deny hit, the chain is accepted if it
// verifies against roots (typically MDS-resolved) or, failing that,
// against allowedCAs. With neither available, it fails with TRUST_PATH,
// matching the reference packed.VerifyOptions contract.
func verifyAttestationTrustPath(leaf *x509.Certificate, chain []*x509.Certificate, roots *x509.CertPool, allowedCAs *x509.CertPool, deniedCAs []*x509.Certificate) error {
	for _, c := range append([]*x509.Certificate{leaf}, chain...) {
		for _, denied := range deniedCAs {
			if bytes.Equal(c.Raw, denied.Raw) {
				return trustPathErr(nil, "attestation certificate chain uses a denied CA")
			}
		}
	}

	if roots == nil && allowedCAs == nil {
		return trustPathErr(nil, "no trusted roots configured")
	}

	intermediates := x509.NewCertPool()
	for _, c := range chain {
		intermediates.AddCert(c)
	}

	var lastErr error
	if roots != nil {
		if _, err := leaf.Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates}); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if allowedCAs != nil {
		if _, err := leaf.Verify(x509.VerifyOptions{Roots: allowedCAs, Intermediates: intermediates}); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return trustPathErr(lastErr, "attestation certificate chain verification failed")
}

// parsePEMCertificates decodes a list of PEM-encoded certificates, as used
// for both RelyingPartyConfig.AttestationAllowedCAs and
// AttestationDeniedCAs (spec's attestation CA allow/deny lists).
func parsePEMCertificates(pemCerts [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(pemCerts))
	for _, p := range pemCerts {
		block, _ := pem.Decode(p)
		if block == nil {
			return nil, parseErr(nil, "invalid PEM certificate")
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, parseErr(err, "parsing certificate")
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// decodePEMCertPool decodes a list of PEM-encoded root certificates into a
// pool, used for RelyingPartyConfig.AttestationAllowedCAs.
func decodePEMCertPool(pemCerts [][]byte) (*x509.CertPool, error) {
	certs, err := parsePEMCertificates(pemCerts)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}
