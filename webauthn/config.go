package webauthn

import (
	"crypto/x509"
	"math"

	"github.com/mitchellh/mapstructure"
)

// AttestationConveyance is the "attestation" option of RelyingPartyConfig.
type AttestationConveyance string

const (
	AttestationDirect   AttestationConveyance = "direct"
	AttestationIndirect AttestationConveyance = "indirect"
	AttestationNone     AttestationConveyance = "none"
)

// AuthenticatorAttachment restricts which class of authenticator is
// acceptable for a registration.
type AuthenticatorAttachment string

const (
	AttachmentPlatform     AuthenticatorAttachment = "platform"
	AttachmentCrossPlatform AuthenticatorAttachment = "cross-platform"
)

// UserVerificationRequirement is the "authenticatorUserVerification"
// option of RelyingPartyConfig.
type UserVerificationRequirement string

const (
	UserVerificationRequired   UserVerificationRequirement = "required"
	UserVerificationPreferred  UserVerificationRequirement = "preferred"
	UserVerificationDiscouraged UserVerificationRequirement = "discouraged"
)

// RelyingPartyConfig holds the configuration of a RelyingParty facade, per
// spec §4.1. Every field is optional; NewRelyingPartyConfig fills in the
// documented defaults and rejects invalid values with the exact messages
// the public contract advertises.
type RelyingPartyConfig struct {
	Timeout int `mapstructure:"timeout"`

	RPID   string `mapstructure:"rpId"`
	RPName string `mapstructure:"rpName"`
	RPIcon string `mapstructure:"rpIcon"`

	ChallengeSize int                   `mapstructure:"challengeSize"`
	Attestation   AttestationConveyance `mapstructure:"attestation"`
	CryptoParams  []int                 `mapstructure:"cryptoParams"`

	AuthenticatorAttachment         AuthenticatorAttachment     `mapstructure:"authenticatorAttachment"`
	AuthenticatorRequireResidentKey bool                        `mapstructure:"authenticatorRequireResidentKey"`
	HasRequireResidentKey           bool                        `mapstructure:"-"`
	AuthenticatorUserVerification   UserVerificationRequirement `mapstructure:"authenticatorUserVerification"`

	// AttestationAllowedCAs/AttestationDeniedCAs adjust which attestation
	// certificate chains a packed/tpm registration trusts. A chain that
	// does not verify against the roots the FIDO Metadata Service registry
	// resolves for the credential's AAGUID is retried against
	// AttestationAllowedCAs; a chain containing any AttestationDeniedCAs
	// certificate is rejected outright. Supplied as PEM-encoded
	// certificates.
	AttestationAllowedCAs *x509.CertPool      `mapstructure:"-"`
	AttestationDeniedCAs  []*x509.Certificate `mapstructure:"-"`
}

// NewRelyingPartyConfig validates a loosely typed options bag (as an
// embedding application would naturally assemble one from its own
// configuration surface) and returns a closed RelyingPartyConfig. Unknown
// keys are accepted and ignored, matching the tolerant options-builder
// contract the facade sits behind; only the documented keys are read here.
func NewRelyingPartyConfig(raw map[string]interface{}) (*RelyingPartyConfig, error) {
	normalized := map[string]interface{}{
		"timeout":       60000,
		"rpName":        "Anonymous Service",
		"challengeSize": defaultChallengeSize,
		"attestation":   string(AttestationDirect),
		"cryptoParams":  []int{-7, -257},
	}

	if v, ok := raw["timeout"]; ok {
		n, ok := asNumber(v)
		if !ok {
			return nil, argTypeErr("expected timeout to be number, got: %v", v)
		}
		if n < 0 {
			return nil, argRangeErr("timeout must be non-negative, got: %v", n)
		}
		normalized["timeout"] = int(n)
	}

	if v, ok := raw["rpId"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected rpId to be string, got: %v", v)
		}
		normalized["rpId"] = s
	}

	if v, ok := raw["rpName"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected rpName to be string, got: %v", v)
		}
		normalized["rpName"] = s
	}

	if v, ok := raw["rpIcon"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected rpIcon to be string, got: %v", v)
		}
		normalized["rpIcon"] = s
	}

	if v, ok := raw["challengeSize"]; ok {
		n, ok := asNumber(v)
		if !ok {
			return nil, argTypeErr("expected challengeSize to be number, got: %v", v)
		}
		if int(n) < minChallengeSize {
			return nil, argRangeErr("challengeSize must be at least %d, got: %v", minChallengeSize, n)
		}
		normalized["challengeSize"] = int(n)
	}

	if v, ok := raw["attestation"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected attestation to be string, got: %v", v)
		}
		switch AttestationConveyance(s) {
		case AttestationDirect, AttestationIndirect, AttestationNone:
		default:
			return nil, argInvalidErr("expected attestation to be one of direct|indirect|none, got: %s", s)
		}
		normalized["attestation"] = s
	}

	if v, ok := raw["cryptoParams"]; ok {
		list, ok := v.([]int)
		if !ok {
			return nil, argTypeErr("expected cryptoParams to be a non-empty list of integers, got: %v", v)
		}
		if len(list) == 0 {
			return nil, argInvalidErr("cryptoParams must not be empty")
		}
		normalized["cryptoParams"] = list
	}

	if v, ok := raw["authenticatorAttachment"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected authenticatorAttachment to be string, got: %v", v)
		}
		switch AuthenticatorAttachment(s) {
		case AttachmentPlatform, AttachmentCrossPlatform:
		default:
			return nil, argInvalidErr("expected authenticatorAttachment to be one of platform|cross-platform, got: %s", s)
		}
		normalized["authenticatorAttachment"] = s
	}

	if v, ok := raw["authenticatorRequireResidentKey"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, argTypeErr("expected authenticatorRequireResidentKey to be boolean, got: %v", v)
		}
		normalized["authenticatorRequireResidentKey"] = b
	}

	if v, ok := raw["authenticatorUserVerification"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, argTypeErr("expected authenticatorUserVerification to be string, got: %v", v)
		}
		switch UserVerificationRequirement(s) {
		case UserVerificationRequired, UserVerificationPreferred, UserVerificationDiscouraged:
		default:
			return nil, argInvalidErr("expected authenticatorUserVerification to be one of required|preferred|discouraged, got: %s", s)
		}
		normalized["authenticatorUserVerification"] = s
	}

	var allowedCAs *x509.CertPool
	if v, ok := raw["attestationAllowedCAs"]; ok {
		pemCerts, ok := v.([][]byte)
		if !ok {
			return nil, argTypeErr("expected attestationAllowedCAs to be a list of PEM certificates, got: %v", v)
		}
		pool, err := decodePEMCertPool(pemCerts)
		if err != nil {
			return nil, err
		}
		allowedCAs = pool
	}

	var deniedCAs []*x509.Certificate
	if v, ok := raw["attestationDeniedCAs"]; ok {
		pemCerts, ok := v.([][]byte)
		if !ok {
			return nil, argTypeErr("expected attestationDeniedCAs to be a list of PEM certificates, got: %v", v)
		}
		certs, err := parsePEMCertificates(pemCerts)
		if err != nil {
			return nil, err
		}
		deniedCAs = certs
	}

	var cfg RelyingPartyConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &cfg})
	if err != nil {
		return nil, parseErr(err, "building configuration decoder")
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, parseErr(err, "decoding relying party configuration")
	}
	if _, ok := raw["authenticatorRequireResidentKey"]; ok {
		cfg.HasRequireResidentKey = true
	}
	cfg.AttestationAllowedCAs = allowedCAs
	cfg.AttestationDeniedCAs = deniedCAs

	return &cfg, nil
}

// asNumber accepts an integral JSON-ish number. A float64 carrying a
// fractional value, NaN, or an infinity is rejected rather than silently
// truncated.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
