package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSignatureInvalid is returned when a webhook signature does not verify.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// ValidationError reports missing or invalid caller input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// GatewayError is an upstream payment provider failure.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// NotFoundError reports an unknown correlation key or record id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// TransientIOError wraps a store or email failure.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientIOError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientIOError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}
