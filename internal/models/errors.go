package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound covers both a record that does not exist and a record
	// that exists under a different project than the caller asserted.
	// Both cases must look identical to avoid leaking existence.
	ErrNotFound = errors.New("record not found")

	// ErrRateLimited means the actor exhausted the inline-update budget.
	ErrRateLimited = errors.New("too many requests")

	// ErrUnauthorized means the actor lacks permission for the mutation.
	ErrUnauthorized = errors.New("permission denied")
)

// ValidationError collects per-field constraint violations. A request that
// produces one mutates nothing.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the per-field messages for rendering on trusted
// surfaces. Untrusted surfaces (inline editing) must not use these.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

// ForbiddenFieldError marks an update that named a field outside the
// applicable whitelist.
type ForbiddenFieldError struct {
	Field string
}

func (e *ForbiddenFieldError) Error() string {
	return fmt.Sprintf("field %q is not editable", e.Field)
}
