// Package errors defines the error taxonomy shared across the cellnote
// codebase. Callers match on the sentinel values with Is; the concrete
// types carry enough context to render a useful message on their own.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels. Every typed error below unwraps to one of these so callers
// can branch without knowing the concrete type.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrAmbiguous    = errors.New("ambiguous match")
	ErrUnsupported  = errors.New("unsupported")
)

// Is wraps errors.Is so callers need only this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As so callers need only this package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap prefixes err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf prefixes err with a formatted message. A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NotFoundError reports a missing resource such as a sheet, a shared
// string slot, or a backup file.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

// NewNotFound builds a NotFoundError for the named resource.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// AmbiguousError reports a lookup that was expected to match exactly one
// candidate but matched several.
type AmbiguousError struct {
	Resource string
	ID       string
	Count    int
}

// NewAmbiguous builds an AmbiguousError recording how many candidates
// matched.
func NewAmbiguous(resource, id string, count int) *AmbiguousError {
	return &AmbiguousError{Resource: resource, ID: id, Count: count}
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s lookup for %q matched %d entries, want exactly 1", e.Resource, e.ID, e.Count)
}

func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguous
}

// ValidationError reports input that failed a check. Field names the
// offending input; Value may hold the rejected value when it is safe to
// echo back.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

// NewValidation builds a ValidationError for the named field.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Is keeps ErrInvalidInput matching even when a cause is wrapped.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IOError reports a failed I/O operation. The message mirrors
// os.PathError: operation, path, cause.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

// NewIO builds an IOError around the underlying cause.
func NewIO(op, path string, err error) *IOError {
	return &IOError{Operation: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError reports malformed input in a named format, such as an XML
// part or an A1 reference.
type ParseError struct {
	Format  string
	Path    string
	Message string
	Err     error
}

// NewParse builds a ParseError for the named format.
func NewParse(format, path, msg string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: msg}
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("parse %s at %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Is keeps ErrInvalidInput matching even when a cause is wrapped.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidInput
}

// UnsupportedError reports a feature or format the code declines to
// handle.
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

// NewUnsupported builds an UnsupportedError with an optional reason.
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "unsupported " + e.Feature
	}
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}
