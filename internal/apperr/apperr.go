// Package apperr defines the structured error taxonomy shared by services and
// HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"maps"
)

// Kind classifies an error for transport mapping.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindConflict
	KindAvailability
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindAvailability:
		return "availability"
	default:
		return "internal"
	}
}

// Stable error codes returned to clients.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
	CodeDuplicate              = "DUPLICATE"
	CodeEmptyCart              = "EMPTY_CART"
	CodeInvalidAddress         = "INVALID_ADDRESS"
	CodeAddressOwnership       = "ADDRESS_OWNERSHIP_MISMATCH"
	CodeItemUnavailable        = "ITEM_UNAVAILABLE"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeCancellationNotAllowed = "CANCELLATION_NOT_ALLOWED"
	CodeReturnNotAllowed       = "RETURN_NOT_ALLOWED"
	CodeReturnWindowExpired    = "RETURN_WINDOW_EXPIRED"
	CodeNoItemsAvailable       = "NO_ITEMS_AVAILABLE"
	CodeOrderNotFound          = "ORDER_NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
)

// Error is a classified failure with a client-facing code and message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy carrying the given details merged over existing ones.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	out := *e
	out.Details = make(map[string]any, len(e.Details)+len(details))
	maps.Copy(out.Details, e.Details)
	maps.Copy(out.Details, details)
	return &out
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

func NotFound(code, message string) *Error {
	if code == "" {
		code = CodeNotFound
	}
	return New(KindNotFound, code, message)
}

func Forbidden(message string) *Error {
	return New(KindAuthorization, CodeForbidden, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// Internal wraps an unexpected infrastructure fault.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf classifies any error; unclassified errors are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
