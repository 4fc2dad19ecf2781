package deploy

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a pipeline failure for retry and reporting decisions.
type ErrorClass string

const (
	// ErrorClassValidation indicates a rejected input, detected before any
	// remote call. Always terminal, always before any mutation.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTransient indicates a provider failure expected to clear on
	// its own, such as a freshly created role not yet visible to Lambda.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates a request-rate ceiling on the provider
	// side, seen on API Gateway management calls.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassPermanent indicates a provider failure no retry can fix.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassReconcile indicates malformed or unreadable remote state
	// encountered while merging against it.
	ErrorClassReconcile ErrorClass = "reconcile"

	// ErrorClassLocal indicates a local filesystem failure (staging,
	// archiving, descriptor persistence).
	ErrorClassLocal ErrorClass = "local"
)

// Error is a classified deployment error. Code carries the provider's stable
// classification code when one exists; branching happens on Class and Code,
// never on message text.
type Error struct {
	Class   ErrorClass
	Message string
	Code    string
	Stage   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on class and code so sentinel comparison works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	return e.Class == t.Class
}

// WithStage records the pipeline stage the error surfaced in.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCode records the provider classification code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// NewValidationError creates a validation error for the named option.
func NewValidationError(message string) *Error {
	return &Error{Class: ErrorClassValidation, Message: message}
}

// NewTransientError creates a transient provider error.
func NewTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewThrottledError creates a rate-limited provider error.
func NewThrottledError(message string, err error) *Error {
	return &Error{Class: ErrorClassThrottled, Message: message, Err: err}
}

// NewPermanentError creates a terminal provider error.
func NewPermanentError(message string, err error) *Error {
	return &Error{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewReconcileError creates an error for unusable existing remote state.
func NewReconcileError(message string, err error) *Error {
	return &Error{Class: ErrorClassReconcile, Message: message, Err: err}
}

// NewLocalError creates a local I/O error.
func NewLocalError(message string, err error) *Error {
	return &Error{Class: ErrorClassLocal, Message: message, Err: err}
}

func classOf(err error) (ErrorClass, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsValidation reports whether err is classified as a validation error.
func IsValidation(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassValidation
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassTransient
}

// IsThrottled reports whether err is classified as throttled.
func IsThrottled(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassThrottled
}

// IsPermanent reports whether err is classified as permanent.
func IsPermanent(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassPermanent
}

// Code returns the provider classification code carried by err, if any.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
