// Package failure defines the failure taxonomy for image tests.
//
// Every error recorded on a test case maps to exactly one Class, which
// determines how the failure is attributed in reports. All classes are
// test-scoped: a failure never aborts the remaining tests of a run.
package failure

import (
	"errors"
	"fmt"
)

// Class is a stable failure category.
type Class string

const (
	Load              Class = "load"
	UnsupportedFormat Class = "unsupported-format"
	Validation        Class = "validation"
	ExternalTool      Class = "external-tool"
	MissingArtifact   Class = "missing-artifact"
	Mismatch          Class = "mismatch"
	Timeout           Class = "timeout"
	Internal          Class = "internal"
)

// Canonical messages for the failures whose text is part of the report contract.
const (
	MsgUnsupportedFormat = "Unsupported manifest format"
	MsgInvalidManifest   = "Invalid manifest: validation failed"
	MsgImageNotProduced  = "image not produced"
	MsgImageInfoMismatch = "image-info mismatch"
)

// Error is the structured error type for all test-scoped failures.
// Error() returns Message verbatim; Detail carries supplementary text
// (validation causes, structural diffs) that reports may show separately.
type Error struct {
	Class   Class
	Message string
	Detail  string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given class and message.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping cause. An empty message takes the
// cause's text.
func Wrap(class Class, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Class: class, Message: message, Cause: cause}
}

// WithDetail returns e after setting its detail text.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// ClassOf reports the class of err. Errors that are not *Error are Internal;
// a nil error has no class.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return Internal
}

// From converts err into an *Error, keeping an existing classification and
// falling back to class otherwise.
func From(class Class, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(class, "", err)
}
