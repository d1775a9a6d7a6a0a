package webauthn

import (
	"crypto/sha256"
	"encoding/json"
	"unicode/utf8"
)

// ClientDataType is the "type" discriminator of collected client data.
//
// https://www.w3.org/TR/webauthn-3/#dom-collectedclientdata-type
type ClientDataType string

const (
	ClientDataTypeCreate ClientDataType = "webauthn.create"
	ClientDataTypeGet    ClientDataType = "webauthn.get"
)

// ClientData is the parsed form of clientDataJSON, the UTF-8 JSON document
// an authenticator signs alongside its response. See spec §4.2.
//
// Field reads are journaled so the audit engine can enforce that every
// present field was actually inspected.
type ClientData struct {
	raw  []byte
	hash [32]byte

	typ         ClientDataType
	challenge   string
	origin      string
	tokenBind   json.RawMessage
	hasTokenBind bool

	j *journal
}

// ParseClientData parses the raw bytes of clientDataJSON. It fails with
// PARSE_ERROR on invalid UTF-8 or invalid JSON, and with ARG_MISSING if
// type/challenge/origin are absent. Parsing never re-serializes raw: the
// original bytes are retained verbatim for hashing.
func ParseClientData(raw []byte) (*ClientData, error) {
	if !utf8.Valid(raw) {
		return nil, parseErr(nil, "clientDataJSON is not valid UTF-8")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, parseErr(err, "clientDataJSON is not valid JSON")
	}

	present := make([]string, 0, len(fields))
	for k := range fields {
		present = append(present, k)
	}

	cd := &ClientData{
		raw:  append([]byte(nil), raw...),
		hash: sha256.Sum256(raw),
		j:    newJournal(present...),
	}

	typeRaw, ok := fields["type"]
	if !ok {
		return nil, argMissingErr("clientDataJSON missing required field: type")
	}
	if err := json.Unmarshal(typeRaw, &cd.typ); err != nil {
		return nil, parseErr(err, "clientDataJSON field 'type' is not a string")
	}

	challengeRaw, ok := fields["challenge"]
	if !ok {
		return nil, argMissingErr("clientDataJSON missing required field: challenge")
	}
	if err := json.Unmarshal(challengeRaw, &cd.challenge); err != nil {
		return nil, parseErr(err, "clientDataJSON field 'challenge' is not a string")
	}

	originRaw, ok := fields["origin"]
	if !ok {
		return nil, argMissingErr("clientDataJSON missing required field: origin")
	}
	if err := json.Unmarshal(originRaw, &cd.origin); err != nil {
		return nil, parseErr(err, "clientDataJSON field 'origin' is not a string")
	}

	if tb, ok := fields["tokenBinding"]; ok {
		cd.tokenBind = tb
		cd.hasTokenBind = true
	}

	return cd, nil
}

// Raw returns the original clientDataJSON bytes.
func (c *ClientData) Raw() []byte { return append([]byte(nil), c.raw...) }

// Hash returns SHA-256 of the original clientDataJSON bytes.
func (c *ClientData) Hash() [32]byte { return c.hash }

// Type returns the "type" field, marking it visited.
func (c *ClientData) Type() ClientDataType {
	c.j.visit("type")
	return c.typ
}

// Challenge returns the base64url-encoded "challenge" field, marking it
// visited.
func (c *ClientData) Challenge() string {
	c.j.visit("challenge")
	return c.challenge
}

// Origin returns the "origin" field, marking it visited.
func (c *ClientData) Origin() string {
	c.j.visit("origin")
	return c.origin
}

// TokenBinding returns the raw "tokenBinding" field and whether it was
// present, marking it visited if present.
func (c *ClientData) TokenBinding() (json.RawMessage, bool) {
	if c.hasTokenBind {
		c.j.visit("tokenBinding")
	}
	return c.tokenBind, c.hasTokenBind
}
