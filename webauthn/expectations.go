package webauthn

import "crypto/x509"

// Factor classifies what kind of user interaction an assertion/attestation
// is expected to carry, per spec §4.7.
type Factor string

const (
	FactorFirst  Factor = "first"
	FactorSecond Factor = "second"
	FactorEither Factor = "either"
)

// Expectations is the declarative expectation set the audit engine checks
// a Result against. Not every field applies to every operation: publicKey,
// prevCounter, userHandle, and allowCredentials are assertion-only.
//
// Origin may be satisfied either by an exact string match (Origin) or by a
// predicate (OriginFunc); exactly one should be set.
type Expectations struct {
	Origin     string
	OriginFunc func(string) bool
	Challenge  string
	Factor     Factor
	RPID       string

	// Assertion-only.
	PublicKey        string
	HasPrevCounter   bool
	PrevCounter      uint32
	HasUserHandle    bool
	UserHandle       *string // nil means "expect no user handle"
	AllowCredentials []string

	// Attestation-only. These are facade configuration, not part of the
	// request-supplied bag BuildExpectations parses: RelyingParty.
	// AttestationResult sets them from RelyingPartyConfig before calling
	// VerifyAttestation.
	AttestationAllowedCAs *x509.CertPool
	AttestationDeniedCAs  []*x509.Certificate
}

// BuildExpectations validates a loosely typed expectations bag (as an
// embedding application would naturally assemble one from request data)
// into a closed Expectations struct. Unknown keys fail with ARG_INVALID;
// missing required keys fail with ARG_MISSING. forAssertion selects which
// keys are required/permitted.
func BuildExpectations(raw map[string]interface{}, forAssertion bool) (*Expectations, error) {
	allowed := map[string]bool{
		"origin": true, "challenge": true, "factor": true, "rpId": true,
	}
	if forAssertion {
		allowed["publicKey"] = true
		allowed["prevCounter"] = true
		allowed["userHandle"] = true
		allowed["allowCredentials"] = true
	}
	for k := range raw {
		if !allowed[k] {
			return nil, argInvalidErr("unknown expectation key: %s", k)
		}
	}

	e := &Expectations{}

	switch v := raw["origin"].(type) {
	case string:
		e.Origin = v
	case func(string) bool:
		e.OriginFunc = v
	case nil:
		return nil, argMissingErr("expectations missing required key: origin")
	default:
		return nil, argTypeErr("expected origin to be string or predicate, got: %v", v)
	}

	challenge, ok := raw["challenge"].(string)
	if !ok {
		if _, present := raw["challenge"]; !present {
			return nil, argMissingErr("expectations missing required key: challenge")
		}
		return nil, argTypeErr("expected challenge to be string, got: %v", raw["challenge"])
	}
	e.Challenge = challenge

	factorRaw, ok := raw["factor"].(string)
	if !ok {
		if _, present := raw["factor"]; !present {
			return nil, argMissingErr("expectations missing required key: factor")
		}
		return nil, argTypeErr("expected factor to be string, got: %v", raw["factor"])
	}
	switch Factor(factorRaw) {
	case FactorFirst, FactorSecond, FactorEither:
		e.Factor = Factor(factorRaw)
	default:
		return nil, argTypeErr("expected factor to be one of first|second|either, got: %s", factorRaw)
	}

	if rpID, present := raw["rpId"]; present {
		s, ok := rpID.(string)
		if !ok {
			return nil, argTypeErr("expected rpId to be string, got: %v", rpID)
		}
		e.RPID = s
	}

	if !forAssertion {
		return e, nil
	}

	pubKey, ok := raw["publicKey"].(string)
	if !ok {
		if _, present := raw["publicKey"]; !present {
			return nil, argMissingErr("expectations missing required key: publicKey")
		}
		return nil, argTypeErr("expected publicKey to be string, got: %v", raw["publicKey"])
	}
	e.PublicKey = pubKey

	switch v := raw["prevCounter"].(type) {
	case uint32:
		e.PrevCounter = v
		e.HasPrevCounter = true
	case int:
		e.PrevCounter = uint32(v)
		e.HasPrevCounter = true
	case nil:
		return nil, argMissingErr("expectations missing required key: prevCounter")
	default:
		return nil, argTypeErr("expected prevCounter to be an integer, got: %v", v)
	}

	if uh, present := raw["userHandle"]; present {
		e.HasUserHandle = true
		if uh == nil {
			e.UserHandle = nil
		} else {
			s, ok := uh.(string)
			if !ok {
				return nil, argTypeErr("expected userHandle to be string or null, got: %v", uh)
			}
			e.UserHandle = &s
		}
	} else {
		return nil, argMissingErr("expectations missing required key: userHandle")
	}

	if ac, present := raw["allowCredentials"]; present {
		list, ok := ac.([]string)
		if !ok {
			return nil, argTypeErr("expected allowCredentials to be a list of strings, got: %v", ac)
		}
		e.AllowCredentials = list
	}

	return e, nil
}

// CheckOrigin reports whether origin satisfies the expectation.
func (e *Expectations) CheckOrigin(origin string) bool {
	if e.OriginFunc != nil {
		return e.OriginFunc(origin)
	}
	return e.Origin == origin
}
