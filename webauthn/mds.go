package webauthn

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
)

// MdsEntry is the canonical, cross-protocol view of one metadata-statement
// union member (UAF, FIDO2, or U2F), as staged into a MdsCollection and
// accepted once its hash matches a TOC descriptor. See spec §4.6.
type MdsEntry struct {
	ProtocolFamily string // "uaf", "fido2", or "u2f"

	AAID    string
	AAGUID  AAGUID
	KeyIDs  []string

	Description                 string
	StatusReports               []interface{}
	TimeOfLastStatusChange      string
	LegalHeader                 string
	AttestationRootCertificates []*x509.Certificate
	MetadataStatement           map[string]interface{}

	collection string
}

// tocDescriptor is one entry of a verified MDS table of contents.
type tocDescriptor struct {
	AAID                                  string        `json:"aaid,omitempty"`
	AAGUID                                string        `json:"aaguid,omitempty"`
	AttestationCertificateKeyIdentifiers []string       `json:"attestationCertificateKeyIdentifiers,omitempty"`
	Hash                                  string        `json:"hash"`
	StatusReports                         []interface{} `json:"statusReports"`
	TimeOfLastStatusChange                string        `json:"timeOfLastStatusChange"`
	URL                                   string        `json:"url,omitempty"`
}

func (d tocDescriptor) identifiers() []string {
	var ids []string
	if d.AAID != "" {
		ids = append(ids, d.AAID)
	}
	if d.AAGUID != "" {
		ids = append(ids, d.AAGUID, strings.ReplaceAll(d.AAGUID, "-", ""))
	}
	ids = append(ids, d.AttestationCertificateKeyIdentifiers...)
	return ids
}

type tocClaims struct {
	LegalHeader string          `json:"legalHeader"`
	No          int             `json:"no"`
	NextUpdate  string          `json:"nextUpdate"`
	Entries     []tocDescriptor `json:"entries"`
}

func (tocClaims) Valid() error { return nil }

// MdsCollection is a named, independently verifiable set of FIDO Metadata
// Service entries. Entries are staged with AddEntry and only promoted into
// the queryable set once the collection's table of contents has been
// verified via AddToc and Validate has matched each staged entry's hash
// against a descriptor.
type MdsCollection struct {
	Name string

	mu      sync.RWMutex
	toc     []tocDescriptor
	legal   string
	staged  [][]byte
	entries map[string][]*MdsEntry
}

// NewMdsCollection returns an empty, unverified collection named name.
func NewMdsCollection(name string) *MdsCollection {
	return &MdsCollection{Name: name, entries: make(map[string][]*MdsEntry)}
}

// AddToc verifies tocJWT's signature against roots (the FIDO MDS root
// certificate pool for this collection) and stores its entry descriptors.
// The leaf certificate is taken from the JWT header's x5c field, per the
// FIDO MDS3 TOC format.
func (c *MdsCollection) AddToc(tocJWT string, roots *x509.CertPool) error {
	var claims tocClaims
	_, err := jwt.ParseWithClaims(tocJWT, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, protocolErr("MDS TOC JWT must use an RS256-family signing method, got: %s", token.Method.Alg())
		}
		leaf, chain, err := leafFromX5C(token.Header)
		if err != nil {
			return nil, err
		}
		if err := verifyAttestationTrustPath(leaf, chain, roots, nil, nil); err != nil {
			return nil, err
		}
		return leaf.PublicKey, nil
	})
	if err != nil {
		return trustPathErr(err, "verifying MDS TOC JWT")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.toc = claims.Entries
	c.legal = claims.LegalHeader
	return nil
}

// AddEntry stages a base64url-encoded metadata statement. It is not
// indexed for lookup until Validate runs.
func (c *MdsCollection) AddEntry(rawEntry string) error {
	data, err := base64.RawURLEncoding.DecodeString(rawEntry)
	if err != nil {
		if data, err = base64.StdEncoding.DecodeString(rawEntry); err != nil {
			return parseErr(err, "decoding metadata statement")
		}
	}
	c.mu.Lock()
	c.staged = append(c.staged, data)
	c.mu.Unlock()
	return nil
}

// Validate matches each staged entry against the verified TOC by hash and
// promotes matches into the queryable entryList, canonicalized into
// MdsEntry. Staged entries with no matching TOC descriptor are dropped
// silently, per the reference behavior: an unmatched statement is simply
// not indexed, not an error.
func (c *MdsCollection) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, raw := range c.staged {
		sum := sha256.Sum256(raw)
		var desc *tocDescriptor
		for i := range c.toc {
			wantHash, err := base64.RawURLEncoding.DecodeString(c.toc[i].Hash)
			if err != nil {
				continue
			}
			if subtle.ConstantTimeCompare(sum[:], wantHash) == 1 {
				desc = &c.toc[i]
				break
			}
		}
		if desc == nil {
			continue
		}

		entry, err := canonicalizeMdsEntry(raw, *desc, c.legal, c.Name)
		if err != nil {
			return err
		}
		for _, id := range mdsEntryIdentifiers(entry) {
			c.entries[id] = append(c.entries[id], entry)
		}
	}
	c.staged = nil
	return nil
}

// FindEntry looks up id against the accepted entries of this collection
// only. Callers normally want the process-wide FindMdsEntry instead.
func (c *MdsCollection) FindEntry(id string) []*MdsEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*MdsEntry(nil), c.entries[normalizeMdsID(id)]...)
}

func mdsEntryIdentifiers(e *MdsEntry) []string {
	var ids []string
	if e.AAID != "" {
		ids = append(ids, e.AAID)
	}
	if !e.AAGUID.IsZero() {
		s := e.AAGUID.String()
		ids = append(ids, s, strings.ReplaceAll(s, "-", ""))
	}
	ids = append(ids, e.KeyIDs...)
	return ids
}

func normalizeMdsID(id string) string { return strings.ToLower(id) }

func canonicalizeMdsEntry(raw []byte, desc tocDescriptor, legal, collection string) (*MdsEntry, error) {
	var stmt map[string]interface{}
	if err := json.Unmarshal(raw, &stmt); err != nil {
		return nil, parseErr(err, "parsing metadata statement")
	}

	e := &MdsEntry{
		StatusReports:          desc.StatusReports,
		TimeOfLastStatusChange: desc.TimeOfLastStatusChange,
		LegalHeader:            legal,
		MetadataStatement:      stmt,
		collection:             collection,
	}

	if aaid, ok := stmt["aaid"].(string); ok && aaid != "" {
		e.ProtocolFamily = "uaf"
		e.AAID = aaid
	} else if aaguidRaw, ok := stmt["aaguid"].(string); ok && aaguidRaw != "" {
		e.ProtocolFamily = "fido2"
		if err := e.AAGUID.UnmarshalText([]byte(aaguidRaw)); err != nil {
			return nil, parseErr(err, "metadata statement aaguid")
		}
	} else if kidsRaw, ok := stmt["attestationCertificateKeyIdentifiers"].([]interface{}); ok {
		e.ProtocolFamily = "u2f"
		for _, k := range kidsRaw {
			if s, ok := k.(string); ok {
				e.KeyIDs = append(e.KeyIDs, s)
			}
		}
	} else {
		return nil, protocolErr("metadata statement has no aaid, aaguid, or attestationCertificateKeyIdentifiers")
	}

	if desc, ok := stmt["description"].(string); ok {
		e.Description = desc
	}
	if certsRaw, ok := stmt["attestationRootCertificates"].([]interface{}); ok {
		for _, c := range certsRaw {
			s, ok := c.(string)
			if !ok {
				continue
			}
			der, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, parseErr(err, "decoding attestationRootCertificates entry")
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, parseErr(err, "parsing attestationRootCertificates entry")
			}
			e.AttestationRootCertificates = append(e.AttestationRootCertificates, cert)
		}
	}

	return e, nil
}

func leafFromX5C(header map[string]interface{}) (*x509.Certificate, []*x509.Certificate, error) {
	raw, ok := header["x5c"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, nil, protocolErr("JWT header missing x5c")
	}
	var certs []*x509.Certificate
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			return nil, nil, protocolErr("JWT header x5c entry is not a string")
		}
		der, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, nil, parseErr(err, "decoding x5c certificate")
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, nil, parseErr(err, "parsing x5c certificate")
		}
		certs = append(certs, cert)
	}
	return certs[0], certs[1:], nil
}

// Process-wide MDS collection registry. Writes are expected only at
// process initialization, per spec §5.
var (
	mdsMu          sync.RWMutex
	mdsCollections []*MdsCollection
)

// AddMdsCollection validates c's staged entries and appends it to the
// process-wide list FindMdsEntry searches. Re-registering a collection with
// the same name appends a
// second, independent collection rather than replacing the first, matching
// the reference behavior that the same AAID can resolve across multiple
// collections (scenario 6 in spec §8).
func AddMdsCollection(c *MdsCollection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	mdsMu.Lock()
	defer mdsMu.Unlock()
	mdsCollections = append(mdsCollections, c)
	return nil
}

// ResetMdsCollections clears the process-wide registry. Exposed for tests.
func ResetMdsCollections() {
	mdsMu.Lock()
	defer mdsMu.Unlock()
	mdsCollections = nil
}

// FindMdsEntry returns every entry across every registered collection that
// matches id, in collection registration order. It fails with NO_MDS if no
// collection has been registered at all.
func FindMdsEntry(id string) ([]*MdsEntry, error) {
	mdsMu.RLock()
	defer mdsMu.RUnlock()
	if len(mdsCollections) == 0 {
		return nil, noMDSErr("no MDS collections registered")
	}
	var out []*MdsEntry
	for _, c := range mdsCollections {
		out = append(out, c.FindEntry(id)...)
	}
	return out, nil
}
