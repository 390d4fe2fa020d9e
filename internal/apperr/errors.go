// Package apperr defines the error taxonomy surfaced to presentation code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthRequired is returned when there is no usable session token.
	ErrAuthRequired = errors.New("authentication required")
	// ErrServiceUnavailable is returned for transport or server failures unrelated to authorization.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrBusy is returned when a conflicting operation of the same kind is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("request rejected")
)

// Kind is the taxonomy member an error maps to.
type Kind int

const (
	KindNone Kind = iota
	KindAuthRequired
	KindValidation
	KindServiceUnavailable
	KindBusy
	KindRejected
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthRequired:
		return "auth_required"
	case KindValidation:
		return "validation"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindBusy:
		return "busy"
	case KindRejected:
		return "rejected"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf maps err to exactly one Kind. Errors outside the taxonomy are treated
// as service failures so that nothing reaches the presentation layer unclassified.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRejected):
		return KindRejected
	default:
		return KindServiceUnavailable
	}
}

// FieldError describes a single invalid field. Index is the position of the
// offending record in a remote payload, or -1 for user input.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed user input or a malformed remote payload.
type ValidationError struct {
	Source string       `json:"source"`
	Fields []FieldError `json:"fields"`
	Err    error        `json:"-"`
}

// NewValidationError creates a ValidationError for the given source.
func NewValidationError(source string) *ValidationError {
	return &ValidationError{Source: source}
}

// Add records an invalid field of user input.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Index: -1, Field: field, Message: message})
}

// AddAt records an invalid field of the record at index.
func (v *ValidationError) AddAt(index int, field, message string) {
	v.Fields = append(v.Fields, FieldError{Index: index, Field: field, Message: message})
}

// HasErrors reports whether any field error was recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0 || v.Err != nil
}

// FieldMessages returns the first message per field, keyed by field name.
func (v *ValidationError) FieldMessages() map[string]string {
	out := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields)+1)
	for _, f := range v.Fields {
		if f.Index >= 0 {
			parts = append(parts, fmt.Sprintf("[%d].%s: %s", f.Index, f.Field, f.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	if v.Err != nil {
		parts = append(parts, v.Err.Error())
	}
	return fmt.Sprintf("invalid %s: %s", v.Source, strings.Join(parts, "; "))
}

// Is makes every ValidationError match ErrValidation.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (v *ValidationError) Unwrap() error {
	return v.Err
}

// RejectedError carries a message returned by the remote service when it refuses a request.
type RejectedError struct {
	Op      string
	Message string
}

func (r *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Op, r.Message)
}

// Is makes every RejectedError match ErrRejected.
func (r *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
