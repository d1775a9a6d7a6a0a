package webauthn

import (
	"github.com/sirupsen/logrus"
)

// PublicKeyCredentialParameters names one acceptable credential type/alg
// pair, as returned in pubKeyCredParams.
type PublicKeyCredentialParameters struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// RelyingPartyEntity is the "rp" field of AttestationOptions.
type RelyingPartyEntity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// AuthenticatorSelectionCriteria is the optional authenticatorSelection
// field of AttestationOptions.
type AuthenticatorSelectionCriteria struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
	RequireResidentKey      *bool  `json:"requireResidentKey,omitempty"`
	UserVerification        string `json:"userVerification,omitempty"`
}

// AttestationOptions is returned by RelyingParty.AttestationOptions, the
// shape of WebAuthn Level 1's PublicKeyCredentialCreationOptions.
type AttestationOptions struct {
	RP                     RelyingPartyEntity              `json:"rp"`
	Challenge              string                           `json:"challenge"`
	RawChallenge           string                           `json:"rawChallenge,omitempty"`
	PubKeyCredParams       []PublicKeyCredentialParameters `json:"pubKeyCredParams"`
	Timeout                int                              `json:"timeout"`
	AuthenticatorSelection *AuthenticatorSelectionCriteria  `json:"authenticatorSelection,omitempty"`
	Attestation            string                           `json:"attestation"`
	Extensions             map[string]interface{}           `json:"extensions,omitempty"`
}

// AssertionOptions is returned by RelyingParty.AssertionOptions, the shape
// of WebAuthn Level 1's PublicKeyCredentialRequestOptions.
type AssertionOptions struct {
	RPID             string                 `json:"rpId,omitempty"`
	Challenge        string                 `json:"challenge"`
	RawChallenge     string                 `json:"rawChallenge,omitempty"`
	Timeout          int                    `json:"timeout"`
	UserVerification string                 `json:"userVerification,omitempty"`
	Extensions       map[string]interface{} `json:"extensions,omitempty"`
}

// RelyingParty is the facade entry point: it issues options and drives
// result verification against a configuration fixed at construction, per
// spec §4.1.
type RelyingParty struct {
	cfg      *RelyingPartyConfig
	registry *Registry
	log      logrus.FieldLogger
}

// NewRelyingParty validates raw into a RelyingPartyConfig and returns a
// facade bound to the process-wide DefaultRegistry.
func NewRelyingParty(raw map[string]interface{}) (*RelyingParty, error) {
	cfg, err := NewRelyingPartyConfig(raw)
	if err != nil {
		return nil, err
	}
	return &RelyingParty{cfg: cfg, registry: DefaultRegistry, log: logrus.StandardLogger()}, nil
}

// WithRegistry swaps the attestation-format registry the facade dispatches
// through, for tests that want a hermetic set of formats.
func (rp *RelyingParty) WithRegistry(r *Registry) *RelyingParty {
	rp.registry = r
	return rp
}

// WithLogger swaps the logger the facade and its results log through.
func (rp *RelyingParty) WithLogger(log logrus.FieldLogger) *RelyingParty {
	rp.log = log
	return rp
}

// AttestationOptions builds a PublicKeyCredentialCreationOptions-shaped
// response together with the Challenge it issued, so the caller can
// persist whichever of challenge.Value/challenge.Raw it needs for the
// matching attestationResult call.
func (rp *RelyingParty) AttestationOptions(extensions map[string]interface{}, extraData []byte) (*AttestationOptions, Challenge, error) {
	challenge, err := NewChallenge(rp.cfg.ChallengeSize, extraData)
	if err != nil {
		return nil, Challenge{}, err
	}

	params := make([]PublicKeyCredentialParameters, 0, len(rp.cfg.CryptoParams))
	for _, alg := range rp.cfg.CryptoParams {
		params = append(params, PublicKeyCredentialParameters{Type: "public-key", Alg: alg})
	}

	opts := &AttestationOptions{
		RP:               RelyingPartyEntity{ID: rp.cfg.RPID, Name: rp.cfg.RPName, Icon: rp.cfg.RPIcon},
		Challenge:        challenge.Base64URL(),
		PubKeyCredParams: params,
		Timeout:          rp.cfg.Timeout,
		Attestation:      string(rp.cfg.Attestation),
		Extensions:       extensions,
	}
	if len(extraData) > 0 {
		opts.RawChallenge = base64URLOf(challenge.Raw)
	}
	if rp.cfg.AuthenticatorAttachment != "" || rp.cfg.HasRequireResidentKey || rp.cfg.AuthenticatorUserVerification != "" {
		sel := &AuthenticatorSelectionCriteria{
			AuthenticatorAttachment: string(rp.cfg.AuthenticatorAttachment),
			UserVerification:        string(rp.cfg.AuthenticatorUserVerification),
		}
		if rp.cfg.HasRequireResidentKey {
			v := rp.cfg.AuthenticatorRequireResidentKey
			sel.RequireResidentKey = &v
		}
		opts.AuthenticatorSelection = sel
	}

	rp.log.WithField("op", "attestationOptions").Debug("issued registration challenge")
	return opts, challenge, nil
}

// AssertionOptions builds a PublicKeyCredentialRequestOptions-shaped
// response together with the Challenge it issued.
func (rp *RelyingParty) AssertionOptions(extensions map[string]interface{}, extraData []byte) (*AssertionOptions, Challenge, error) {
	challenge, err := NewChallenge(rp.cfg.ChallengeSize, extraData)
	if err != nil {
		return nil, Challenge{}, err
	}

	opts := &AssertionOptions{
		RPID:             rp.cfg.RPID,
		Challenge:        challenge.Base64URL(),
		Timeout:          rp.cfg.Timeout,
		UserVerification: string(rp.cfg.AuthenticatorUserVerification),
		Extensions:       extensions,
	}
	if len(extraData) > 0 {
		opts.RawChallenge = base64URLOf(challenge.Raw)
	}

	rp.log.WithField("op", "assertionOptions").Debug("issued authentication challenge")
	return opts, challenge, nil
}

// AttestationResult verifies a registration response against exp, using
// this facade's configured attestation-format registry and its configured
// attestation CA allow/deny lists.
func (rp *RelyingParty) AttestationResult(rawID, clientDataJSON, attestationObject []byte, exp *Expectations) (*AttestationResult, error) {
	exp.AttestationAllowedCAs = rp.cfg.AttestationAllowedCAs
	exp.AttestationDeniedCAs = rp.cfg.AttestationDeniedCAs
	return VerifyAttestation(rawID, clientDataJSON, attestationObject, exp, rp.registry, rp.log)
}

// AssertionResult verifies an authentication response against exp.
func (rp *RelyingParty) AssertionResult(rawID, clientDataJSON, authenticatorData, signature, userHandle []byte, exp *Expectations) (*AssertionResult, error) {
	return VerifyAssertion(rawID, clientDataJSON, authenticatorData, signature, userHandle, exp, rp.log)
}

func base64URLOf(b []byte) string {
	c := Challenge{Value: b}
	return c.Base64URL()
}
