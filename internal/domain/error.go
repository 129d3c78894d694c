package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// Each code maps to exactly one HTTP status in the handler package.
const (
	EINVALID      = "invalid"             // 400 - malformed or missing input
	EUNRECOGNIZED = "unrecognized_status" // 400 - payment status cannot be normalized
	ENOOP         = "no_op"               // 400 - request carries nothing to change
	EUNAUTHORIZED = "unauthorized"        // 401 - no valid session
	EFORBIDDEN    = "forbidden"           // 403 - authenticated but not permitted
	ENOTFOUND     = "not_found"           // 404
	ECONFLICT     = "conflict"            // 409 - unique constraint violation
	ETOOLARGE     = "too_large"           // 413 - request body over the limit
	ERATELIMIT    = "rate_limit"          // 429
	EINTERNAL     = "internal"            // 500 - details are never shown to callers
)

const genericInternalMessage = "An internal error occurred. Please try again later."

// Error is an application error with a machine-readable code and a
// message that is safe to return to callers.
type Error struct {
	// Code is one of the E* constants.
	Code string

	// Message is shown to users verbatim unless Code is EINTERNAL.
	Message string

	// Op names the operation that failed, e.g. "webhook.reconcile".
	// Logged, never rendered.
	Op string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap supports errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the code from err. Non-domain errors are EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	if validationCause(err) != nil {
		return EINVALID
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from err.
// Internal and unknown errors collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if ve := validationCause(err); ve != nil {
		return ve.Summary()
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return genericInternalMessage
		}
		return e.Message
	}

	return genericInternalMessage
}

// ErrorOp extracts the operation from err for logging.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	if ve := validationCause(err); ve != nil {
		return ve.Op
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	return ""
}

// Errorf creates a domain error with a formatted message.
func Errorf(code, op, format string, args ...any) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps err with a code and operation. Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// =============================================================================
// Field validation
// =============================================================================

// ValidationError collects per-field failures from request schema validation.
type ValidationError struct {
	// Fields maps a field name to its failure message.
	Fields map[string]string

	Op string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Summary())
	}
	return e.Summary()
}

// Summary renders the failures without the operation prefix.
// A single failure is rendered as "field: message".
func (e *ValidationError) Summary() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{
		Op:     op,
		Fields: map[string]string{field: message},
	}
}

// AddFieldError adds a field failure to err, creating a ValidationError
// when err is nil or of another type.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}

	return &ValidationError{
		Fields: map[string]string{field: message},
	}
}

// GetValidationFields returns the field map of a ValidationError, or nil.
func GetValidationFields(err error) map[string]string {
	if ve := validationCause(err); ve != nil {
		return ve.Fields
	}
	return nil
}

// validationCause returns the ValidationError in err's chain unless an
// internal Error wraps it. A wrapped validation failure inside an internal
// error is a server fault and must not surface as a caller error.
func validationCause(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Code == EINTERNAL {
		return nil
	}
	return ve
}

// =============================================================================
// Constructors
// =============================================================================

// NotFound creates a not found error for a resource.
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

// Forbidden creates an authorization error.
func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

// Invalid creates a validation error for a single issue.
func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Conflict creates a conflict error.
func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps an unexpected failure. Callers only ever see a generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
