package webauthn

import (
	"sync"
)

// ParseFunc parses a format-specific attestation statement (already
// CBOR-decoded into a generic map by the caller) into whatever shape the
// format finds convenient; the result must be non-nil.
type ParseFunc func(attStmt map[string]interface{}) (map[string]interface{}, error)

// ValidateFunc verifies a parsed attestation statement against the
// in-progress result, exposed through ctx. It must return true (or a
// failure) to count as a pass; returning false with a nil error is
// treated as a plugin contract violation (PROTOCOL_ERROR), the same as a
// returned false ok in the reference library.
type ValidateFunc func(ctx *AuditContext, parsed map[string]interface{}) (bool, error)

type formatEntry struct {
	parse    ParseFunc
	validate ValidateFunc
}

// Registry is a mapping from attestation format name ("fmt" in the
// attestation object) to its (parseFn, validateFn) pair. It is safe for
// concurrent use: writes are expected only during process initialization,
// and reads take a read lock, per spec §5.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]formatEntry
}

// NewRegistry returns an empty Registry. Most callers want DefaultRegistry
// instead, which ships the five built-in formats pre-registered.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]formatEntry)}
}

// Add registers fmt with the given parse/validate functions. It fails with
// DUPLICATE if fmt is already registered, and with ARG_TYPE if fmt is
// empty or either function is nil.
func (r *Registry) Add(format string, parse ParseFunc, validate ValidateFunc) error {
	if format == "" {
		return argTypeErr("expected fmt to be a non-empty string")
	}
	if parse == nil {
		return argTypeErr("expected parseFn to be callable, got: nil")
	}
	if validate == nil {
		return argTypeErr("expected validateFn to be callable, got: nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.formats[format]; ok {
		return duplicateErr("attestation format already registered: %s", format)
	}
	r.formats[format] = formatEntry{parse: parse, validate: validate}
	return nil
}

// DeleteAll empties the registry.
func (r *Registry) DeleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = make(map[string]formatEntry)
}

// Has reports whether format is registered.
func (r *Registry) Has(format string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.formats[format]
	return ok
}

// Parse invokes the registered parser for format. It fails with
// PROTOCOL_ERROR if format is unregistered, or if the parser returns a nil
// map alongside a nil error (a plugin contract violation).
func (r *Registry) Parse(format string, attStmt map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	entry, ok := r.formats[format]
	r.mu.RUnlock()
	if !ok {
		return nil, protocolErr("unknown attestation format: %s", format)
	}
	parsed, err := entry.parse(attStmt)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, protocolErr("%s parseFn did not return a Map", format)
	}
	return parsed, nil
}

// Validate invokes the registered validator for format. It fails with
// PROTOCOL_ERROR if format is unregistered, or if the validator returns
// (false, nil) (a plugin contract violation: it must either return true or
// a descriptive error).
func (r *Registry) Validate(format string, ctx *AuditContext, parsed map[string]interface{}) error {
	r.mu.RLock()
	entry, ok := r.formats[format]
	r.mu.RUnlock()
	if !ok {
		return protocolErr("unknown attestation format: %s", format)
	}
	ok2, err := entry.validate(ctx, parsed)
	if err != nil {
		return err
	}
	if !ok2 {
		return protocolErr("%s validateFn did not return 'true'", format)
	}
	return nil
}

// DefaultRegistry is the process-wide registry pre-populated with the
// five built-in attestation formats (none, fido-u2f, packed, tpm,
// android-safetynet). Applications that need a hermetic registry for
// tests should build their own with NewRegistry and Add only what they
// need.
var DefaultRegistry = NewRegistry()

func registerBuiltin(format string, parse ParseFunc, validate ValidateFunc) {
	if err := DefaultRegistry.Add(format, parse, validate); err != nil {
		panic("webauthn: built-in format registration failed: " + err.Error())
	}
}
