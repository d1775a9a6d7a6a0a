package webauthn

import (
	"bytes"
	"encoding/base64"

	"github.com/sirupsen/logrus"
)

// AttestationResult is the outcome of a successfully verified registration
// ceremony. It is single-use: construction runs the full audit pipeline to
// completion before the value is ever returned to the caller, per spec
// §4.8.
type AttestationResult struct {
	RawID             []byte
	ClientData        *ClientData
	AuthenticatorData *AuthenticatorData
	Format            string
	// ResidentKey reports the authenticator data's BE ("backup eligible")
	// bit, the credProps.rk signal an embedding application would
	// otherwise have to read out of clientExtensionResults itself.
	ResidentKey bool
	Warnings    []string
}

// AssertionResult is the outcome of a successfully verified authentication
// ceremony.
type AssertionResult struct {
	RawID             []byte
	ClientData        *ClientData
	AuthenticatorData *AuthenticatorData
	UserHandle        []byte
	Warnings          []string
}

// VerifyAttestation parses and audits a registration response. See spec
// §4.1 attestationResult and §4.7-4.8.
func VerifyAttestation(rawID, clientDataJSON, attestationObject []byte, exp *Expectations, registry *Registry, log logrus.FieldLogger) (*AttestationResult, error) {
	if registry == nil {
		registry = DefaultRegistry
	}

	cd, err := ParseClientData(clientDataJSON)
	if err != nil {
		return nil, err
	}
	ao, err := ParseAttestationObject(attestationObject)
	if err != nil {
		return nil, err
	}

	ctx := newAuditContext(ao.AuthData, cd, 0, log)
	ctx.allowedCAs = exp.AttestationAllowedCAs
	ctx.deniedCAs = exp.AttestationDeniedCAs

	if err := runAudit(ctx, exp, ClientDataTypeCreate); err != nil {
		return nil, err
	}

	parsed, err := registry.Parse(ao.Format, ao.AttStmt)
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(ao.Format, ctx, parsed); err != nil {
		return nil, err
	}

	// A registration ceremony's entire purpose is to hand the relying party
	// a credential to store; every representation of it counts as examined
	// regardless of which attestation format ran, since formats only visit
	// the representations their own verification math needs (e.g. "none"
	// touches none of them, fido-u2f never needs aaguid).
	if ao.AuthData.HasAttestedCredentialData {
		ao.AuthData.visitAAGUID()
		ao.AuthData.visitCredID()
		ao.AuthData.visitPublicKeyCOSE()
		if _, err := ao.AuthData.visitPublicKeyJWK(); err != nil {
			return nil, err
		}
		if _, err := ao.AuthData.visitPublicKeyPEM(); err != nil {
			return nil, err
		}
	}

	if err := checkAuditComplete(cd, ao.AuthData); err != nil {
		return nil, err
	}

	return &AttestationResult{
		RawID:             rawID,
		ClientData:        cd,
		AuthenticatorData: ao.AuthData,
		Format:            ao.Format,
		ResidentKey:       ao.AuthData.Flags.BackupEligible(),
	}, nil
}

// VerifyAssertion parses and audits an authentication response. See spec
// §4.1 assertionResult and §4.7-4.8.
func VerifyAssertion(rawID, clientDataJSON, authenticatorData, signature, userHandle []byte, exp *Expectations, log logrus.FieldLogger) (*AssertionResult, error) {
	cd, err := ParseClientData(clientDataJSON)
	if err != nil {
		return nil, err
	}
	ad, err := ParseAuthenticatorData(authenticatorData)
	if err != nil {
		return nil, err
	}

	ctx := newAuditContext(ad, cd, 0, log)

	if err := runAudit(ctx, exp, ClientDataTypeGet); err != nil {
		return nil, err
	}

	var warnings []string

	newCounter := ad.Counter
	if newCounter == 0 && exp.PrevCounter == 0 {
		warnings = append(warnings, "signature counter is zero on both sides; authenticator may not implement counters")
	} else if newCounter <= exp.PrevCounter {
		return nil, sigInvalidErr(nil, "signature counter did not advance: prevCounter=%d, counter=%d", exp.PrevCounter, newCounter)
	}

	if exp.UserHandle == nil {
		if len(userHandle) != 0 {
			return nil, protocolErr("expected no userHandle, got one")
		}
	} else if !bytes.Equal(userHandle, []byte(*exp.UserHandle)) {
		return nil, protocolErr("userHandle does not match expectations")
	}

	if len(exp.AllowCredentials) > 0 {
		id := base64.RawURLEncoding.EncodeToString(rawID)
		allowed := false
		for _, c := range exp.AllowCredentials {
			if c == id {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, protocolErr("credential id is not in allowCredentials")
		}
	}

	if ad.HasAttestedCredentialData {
		ad.visitAAGUID()
		ad.visitCredID()
		ad.visitPublicKeyCOSE()
		if _, err := ad.visitPublicKeyJWK(); err != nil {
			return nil, err
		}
		if _, err := ad.visitPublicKeyPEM(); err != nil {
			return nil, err
		}
	}

	pub, alg, err := parsePEMPublicKey(exp.PublicKey)
	if err != nil {
		return nil, err
	}
	signedBytes := make([]byte, 0, len(ad.Raw)+32)
	signedBytes = append(signedBytes, ad.Raw...)
	signedBytes = append(signedBytes, ctx.clientDataHash[:]...)
	if err := VerifySignature(pub, alg, signedBytes, signature); err != nil {
		return nil, err
	}

	if err := checkAuditComplete(cd, ad); err != nil {
		return nil, err
	}

	return &AssertionResult{
		RawID:             rawID,
		ClientData:        cd,
		AuthenticatorData: ad,
		UserHandle:        userHandle,
		Warnings:          warnings,
	}, nil
}

func checkAuditComplete(cd *ClientData, ad *AuthenticatorData) error {
	var unvisited []string
	unvisited = append(unvisited, cd.j.unvisited()...)
	unvisited = append(unvisited, ad.j.unvisited()...)
	if len(unvisited) > 0 {
		return auditIncompleteErr("unvisited fields: %v", unvisited)
	}
	return nil
}
