// Package results defines the closed set of business outcomes returned by
// lifecycle operations. Expected outcomes (not found, unauthorised, rule
// violations) travel as Result variants; only infrastructure faults use the
// error return, and those propagate to the caller unchanged.
package results

import "fmt"

// Kind discriminates the Result variants. Callers switch exhaustively; an
// unknown kind is a programming error.
type Kind int

const (
	KindSuccess Kind = iota
	KindNotFound
	KindUnauthorised
	KindGeneralValidationError
	KindFieldValidationError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotFound:
		return "not_found"
	case KindUnauthorised:
		return "unauthorised"
	case KindGeneralValidationError:
		return "general_validation_error"
	case KindFieldValidationError:
		return "field_validation_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is the outcome of one lifecycle operation. The zero value is an
// empty Success; construct through the variant functions.
type Result[T any] struct {
	kind        Kind
	value       T
	entityType  string
	entityID    string
	message     string
	fieldErrors map[string]string
}

// Success wraps a value in the success variant.
func Success[T any](value T) Result[T] {
	return Result[T]{kind: KindSuccess, value: value}
}

// NotFound records that no entity of the given type exists for the id.
func NotFound[T any](entityType, entityID string) Result[T] {
	return Result[T]{kind: KindNotFound, entityType: entityType, entityID: entityID}
}

// Unauthorised records that the caller lacks the capability or ownership
// required by the operation.
func Unauthorised[T any]() Result[T] {
	return Result[T]{kind: KindUnauthorised}
}

// GeneralValidationError records a business-rule violation with a single
// operation-level message.
func GeneralValidationError[T any](message string) Result[T] {
	return Result[T]{kind: KindGeneralValidationError, message: message}
}

// FieldValidationError records per-field rule violations.
func FieldValidationError[T any](fields map[string]string) Result[T] {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Result[T]{kind: KindFieldValidationError, fieldErrors: copied}
}

func (r Result[T]) Kind() Kind      { return r.kind }
func (r Result[T]) IsSuccess() bool { return r.kind == KindSuccess }

// Value returns the success payload. Only meaningful when IsSuccess.
func (r Result[T]) Value() T { return r.value }

// EntityType and EntityID describe a NotFound outcome.
func (r Result[T]) EntityType() string { return r.entityType }
func (r Result[T]) EntityID() string   { return r.entityID }

// Message is the general validation message.
func (r Result[T]) Message() string { return r.message }

// FieldErrors maps field names to violation messages.
func (r Result[T]) FieldErrors() map[string]string {
	copied := make(map[string]string, len(r.fieldErrors))
	for k, v := range r.fieldErrors {
		copied[k] = v
	}
	return copied
}

// Convert re-tags a non-success result with a new payload type, preserving
// the variant data. It panics on Success: a success payload cannot be
// converted blindly.
func Convert[T, U any](r Result[T]) Result[U] {
	if r.kind == KindSuccess {
		panic("results: cannot convert a success result between payload types")
	}
	return Result[U]{
		kind:        r.kind,
		entityType:  r.entityType,
		entityID:    r.entityID,
		message:     r.message,
		fieldErrors: r.fieldErrors,
	}
}
