package webauthn

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// Kind classifies a failure raised anywhere in the verification pipeline.
// Kinds are part of the public contract: callers are expected to switch on
// them rather than match error message substrings.
type Kind string

// The complete set of kinds this package ever returns. See spec §7.
const (
	KindArgType         Kind = "ARG_TYPE"
	KindArgRange        Kind = "ARG_RANGE"
	KindArgMissing      Kind = "ARG_MISSING"
	KindArgInvalid      Kind = "ARG_INVALID"
	KindDuplicate       Kind = "DUPLICATE"
	KindParseError      Kind = "PARSE_ERROR"
	KindProtocolError   Kind = "PROTOCOL_ERROR"
	KindAlgMismatch     Kind = "ALG_MISMATCH"
	KindSigInvalid      Kind = "SIG_INVALID"
	KindTrustPath       Kind = "TRUST_PATH"
	KindAuditIncomplete Kind = "AUDIT_INCOMPLETE"
	KindNoMDS           Kind = "NO_MDS"
	KindUnsupported     Kind = "UNSUPPORTED"
)

// Error is the structured error type returned by this package. Message is
// the verbatim human-readable text that is part of the observed contract;
// Kind lets callers classify failures without parsing Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As and to
// trace.Unwrap.
func (e *Error) Unwrap() error { return e.cause }

// newErr builds an *Error, optionally wrapping cause with trace so a stack
// trace is attached the way the rest of the corpus attaches one via
// trace.Wrap.
func newErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = trace.Wrap(cause, "%s", msg)
	}
	return &Error{Kind: kind, Message: msg, cause: wrapped}
}

func argTypeErr(format string, args ...interface{}) error {
	return newErr(KindArgType, nil, format, args...)
}

func argRangeErr(format string, args ...interface{}) error {
	return newErr(KindArgRange, nil, format, args...)
}

func argMissingErr(format string, args ...interface{}) error {
	return newErr(KindArgMissing, nil, format, args...)
}

func argInvalidErr(format string, args ...interface{}) error {
	return newErr(KindArgInvalid, nil, format, args...)
}

func duplicateErr(format string, args ...interface{}) error {
	return newErr(KindDuplicate, nil, format, args...)
}

func parseErr(cause error, format string, args ...interface{}) error {
	return newErr(KindParseError, cause, format, args...)
}

func protocolErr(format string, args ...interface{}) error {
	return newErr(KindProtocolError, nil, format, args...)
}

func algMismatchErr(format string, args ...interface{}) error {
	return newErr(KindAlgMismatch, nil, format, args...)
}

func sigInvalidErr(cause error, format string, args ...interface{}) error {
	return newErr(KindSigInvalid, cause, format, args...)
}

func trustPathErr(cause error, format string, args ...interface{}) error {
	return newErr(KindTrustPath, cause, format, args...)
}

func auditIncompleteErr(format string, args ...interface{}) error {
	return newErr(KindAuditIncomplete, nil, format, args...)
}

func noMDSErr(format string, args ...interface{}) error {
	return newErr(KindNoMDS, nil, format, args...)
}

func unsupportedErr(format string, args ...interface{}) error {
	return newErr(KindUnsupported, nil, format, args...)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
