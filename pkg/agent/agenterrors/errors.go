// Package agenterrors defines the closed set of failure kinds the engine can
// surface, split into construction-time validation errors and execution-time
// errors. All anticipated failure modes are values; nothing panics across the
// package boundary.
package agenterrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a failure mode.
type Kind int8

const (
	// Construction-time validation kinds.

	// KindEmptyName is raised when the definition name is blank or whitespace-only.
	KindEmptyName Kind = iota
	// KindEmptyDescription is raised when the definition description is blank.
	KindEmptyDescription
	// KindEmptyModelName is raised when the model name is blank.
	KindEmptyModelName
	// KindInvalidMaxAttempts is raised when maxAttempts < 1.
	KindInvalidMaxAttempts
	// KindMissingOutputSchema is raised when no output schema is supplied.
	KindMissingOutputSchema

	// Execution-time kinds.

	// KindExecutionCancelled is raised when the cancellation signal is observed
	// at a suspension point.
	KindExecutionCancelled
	// KindMaxAttemptsExceeded is raised when validation fails on the final attempt.
	KindMaxAttemptsExceeded
	// KindStateProjectionFailed is raised when the final-state projection function fails.
	KindStateProjectionFailed
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEmptyName:
		return "EMPTY_NAME"
	case KindEmptyDescription:
		return "EMPTY_DESCRIPTION"
	case KindEmptyModelName:
		return "EMPTY_MODEL_NAME"
	case KindInvalidMaxAttempts:
		return "INVALID_MAX_ATTEMPTS"
	case KindMissingOutputSchema:
		return "MISSING_OUTPUT_SCHEMA"
	case KindExecutionCancelled:
		return "EXECUTION_CANCELLED"
	case KindMaxAttemptsExceeded:
		return "MAX_ATTEMPTS_EXCEEDED"
	case KindStateProjectionFailed:
		return "STATE_PROJECTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Category groups kinds by when they can occur.
type Category string

const (
	// CategoryValidation marks construction-time errors.
	CategoryValidation Category = "validation"
	// CategoryExecution marks execution-time errors.
	CategoryExecution Category = "execution"
)

// CategoryOf returns the category a kind belongs to.
func CategoryOf(k Kind) Category {
	switch k {
	case KindExecutionCancelled, KindMaxAttemptsExceeded, KindStateProjectionFailed:
		return CategoryExecution
	default:
		return CategoryValidation
	}
}

// Severity indicates how serious an error is. All current kinds are errors;
// the level exists so callbacks can filter if softer kinds are added.
type Severity int8

const (
	// SeverityWarning marks recoverable conditions.
	SeverityWarning Severity = iota
	// SeverityError marks failures.
	SeverityError
)

// Error is a classified engine failure.
type Error struct {
	Err      error          // Wrapped underlying error, if any
	Context  map[string]any // Structured context (attempt counts, phase, layer name)
	Message  string         // Human-readable message
	Path     string         // Optional field path for construction errors ("validation.maxAttempts")
	Kind     Kind           // Failure kind
	Category Category       // validation or execution
	Severity Severity
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind.String(), e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:     kind,
		Category: CategoryOf(kind),
		Severity: SeverityError,
		Message:  message,
	}
}

// NewWithPath creates a construction error annotated with the offending field path.
func NewWithPath(kind Kind, path, message string) *Error {
	e := New(kind, message)
	e.Path = path
	return e
}

// NewWithContext creates an error carrying structured context.
func NewWithContext(kind Kind, message string, context map[string]any) *Error {
	e := New(kind, message)
	e.Context = context
	return e
}

// Is reports whether err is an engine error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the kind of an engine error, or -1 if err is not one.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return Kind(-1), false
}

// ValidationErrors aggregates every construction rule violation so a caller
// can fix all problems in one pass.
type ValidationErrors []*Error

// Error implements the error interface by joining all messages.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(ve), strings.Join(parts, "; "))
}

// Unwrap exposes the contained errors to errors.Is and errors.As traversal.
func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, e := range ve {
		errs[i] = e
	}
	return errs
}

// Kinds returns the kind of each contained error, in order.
func (ve ValidationErrors) Kinds() []Kind {
	kinds := make([]Kind, len(ve))
	for i, e := range ve {
		kinds[i] = e.Kind
	}
	return kinds
}

// Has reports whether the list contains an error of the given kind.
func (ve ValidationErrors) Has(kind Kind) bool {
	for _, e := range ve {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
