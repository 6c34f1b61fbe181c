package anonymizer

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller
type Kind string

const (
	// KindValidation means a structural precondition was violated
	KindValidation Kind = "validation"
	// KindSchema means a record does not fit the inferred schema
	KindSchema Kind = "schema"
	// KindBusinessRule means a constraint parameter exceeds what the data allows
	KindBusinessRule Kind = "business_rule"
	// KindEngine means the external engine failed
	KindEngine Kind = "engine"
)

// Reason refines a schema or validation error
type Reason string

const (
	ReasonSchemaMismatch   Reason = "schema_mismatch"
	ReasonUnknownAttribute Reason = "unknown_attribute"
	ReasonMissingField     Reason = "missing_field"
	ReasonDirectIdentifier Reason = "direct_identifier"
)

// Error is the typed error returned by every stage of the pipeline
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Cause   error
}

// Error renders kind and message; the message of an engine error already
// carries the cause text.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err carries an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func businessRuleErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

func schemaErrorf(reason Reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindSchema, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func engineError(cause error) *Error {
	return &Error{Kind: KindEngine, Message: fmt.Sprintf("engine invocation failed: %v", cause), Cause: cause}
}
