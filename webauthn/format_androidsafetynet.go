package webauthn

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func init() {
	registerBuiltin("android-safetynet", parseSafetyNetAttestation, validateSafetyNetAttestation)
}

func parseSafetyNetAttestation(attStmt map[string]interface{}) (map[string]interface{}, error) {
	ver, err := attStmtString(attStmt, "ver")
	if err != nil {
		return nil, err
	}
	response, err := attStmtBytes(attStmt, "response")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ver": ver, "response": response}, nil
}

type safetyNetClaims struct {
	Nonce           string `json:"nonce"`
	CtsProfileMatch bool   `json:"ctsProfileMatch"`
	BasicIntegrity  bool   `json:"basicIntegrity"`
	TimestampMs     int64  `json:"timestampMs"`
}

func (safetyNetClaims) Valid() error { return nil }

func validateSafetyNetAttestation(ctx *AuditContext, parsed map[string]interface{}) (bool, error) {
	response := parsed["response"].([]byte)

	var claims safetyNetClaims
	token, err := jwt.ParseWithClaims(string(response), &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, protocolErr("android-safetynet JWS must use RS256, got: %s", token.Method.Alg())
		}
		leaf, _, err := leafFromX5C(token.Header)
		if err != nil {
			return nil, err
		}
		if leaf.Subject.CommonName != "attest.android.com" {
			return nil, trustPathErr(nil, "android-safetynet leaf certificate CN must be attest.android.com, got: %s", leaf.Subject.CommonName)
		}
		return leaf.PublicKey, nil
	})
	if err != nil {
		return false, sigInvalidErr(err, "verifying android-safetynet JWS")
	}
	if !token.Valid {
		return false, sigInvalidErr(nil, "android-safetynet JWS signature invalid")
	}

	ad := ctx.authnrData
	expected := sha256.Sum256(append(append([]byte(nil), ad.Raw...), ctx.clientDataHash[:]...))
	wantNonce := base64.StdEncoding.EncodeToString(expected[:])
	if claims.Nonce != wantNonce {
		return false, trustPathErr(nil, "android-safetynet nonce does not match authData||clientDataHash")
	}
	if !claims.CtsProfileMatch {
		return false, trustPathErr(nil, "android-safetynet ctsProfileMatch is false")
	}
	if !claims.BasicIntegrity {
		return false, trustPathErr(nil, "android-safetynet basicIntegrity is false")
	}

	ts := time.UnixMilli(claims.TimestampMs)
	now := time.Now()
	window := ctx.safetyNetWindow
	if ts.Before(now.Add(-window)) || ts.After(now.Add(window)) {
		return false, trustPathErr(nil, "android-safetynet timestampMs is outside the allowed window")
	}

	return true, nil
}
