// Package errors provides error handling for rca.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints attached to configuration failures
//
// Usage:
//
//	// Wrap with context
//	if err := open(path); err != nil {
//	    return errors.Wrap(err, "failed to open source")
//	}
//
//	// Classify against the failure taxonomy
//	if errors.Is(err, errors.ErrInvalidConfiguration) {
//	    // surface to the caller before any pipeline stage runs
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
	Mark        = crdb.Mark
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Failure taxonomy. Per-source and per-collaborator failures are absorbed at
// the component that can make a local decision; only ErrInvalidConfiguration
// and ErrNoUsableInput reach the caller as hard failures.
var (
	// ErrUnreadable indicates a source could not be opened at all.
	ErrUnreadable = New("source unreadable")

	// ErrCollaboratorUnavailable indicates the structured parser, resource
	// sampler or container runtime failed or timed out.
	ErrCollaboratorUnavailable = New("collaborator unavailable")

	// ErrDeadlineExceeded indicates the triage time budget expired.
	ErrDeadlineExceeded = New("deadline exceeded")

	// ErrInvalidConfiguration indicates malformed settings or request fields.
	ErrInvalidConfiguration = New("invalid configuration")

	// ErrNoUsableInput indicates a run produced zero usable input, e.g. the
	// single source of a basic run could not be read.
	ErrNoUsableInput = New("no usable input")
)

// ParseErrorKind distinguishes parse failures.
type ParseErrorKind string

// ParseUnreadable is the only hard parse failure: the source cannot be opened.
const ParseUnreadable ParseErrorKind = "unreadable"

// ParseError reports that a source could not be parsed.
type ParseError struct {
	Kind ParseErrorKind
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ParseUnreadable errors as ErrUnreadable.
func (e *ParseError) Is(target error) bool {
	return e.Kind == ParseUnreadable && target == ErrUnreadable
}

// NewUnreadable creates an unreadable-source parse error.
func NewUnreadable(path string, err error) error {
	return &ParseError{Kind: ParseUnreadable, Path: path, Err: err}
}

// IsUnreadable checks if an error is or wraps ErrUnreadable
func IsUnreadable(err error) bool {
	return err != nil && Is(err, ErrUnreadable)
}

// IsInvalidConfiguration checks if an error is or wraps ErrInvalidConfiguration
func IsInvalidConfiguration(err error) bool {
	return err != nil && Is(err, ErrInvalidConfiguration)
}

// IsCollaboratorUnavailable checks if an error is or wraps ErrCollaboratorUnavailable
func IsCollaboratorUnavailable(err error) bool {
	return err != nil && Is(err, ErrCollaboratorUnavailable)
}

// NewInvalidConfigurationf creates an invalid-configuration error with a formatted message
func NewInvalidConfigurationf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidConfiguration)
}

// WrapCollaborator marks err as a collaborator failure with context
func WrapCollaborator(err error, collaborator string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, "%s", collaborator), ErrCollaboratorUnavailable)
}
