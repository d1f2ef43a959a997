// Package bterrors defines the structured error taxonomy used across the
// bounded reader, format parsers, and triage pipeline. Errors carry typed
// fields instead of free-form strings so callers can branch on Type or use
// errors.As to recover structured detail.
package bterrors

import (
	"fmt"
)

// ErrorType groups errors into the families named in the error-handling
// design: input validity, resource bounds, parsing, and serialization.
type ErrorType string

const (
	TypeInput         ErrorType = "input"
	TypeBounds        ErrorType = "bounds"
	TypeParse         ErrorType = "parse"
	TypeSerialization ErrorType = "serialization"
)

// InvalidFormatError signals bytes that do not match any recognized
// container format at the point the caller asked for one specifically.
type InvalidFormatError struct {
	Detail string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format: %s", e.Detail)
}

// InvalidMagicError signals a magic-number mismatch at a fixed offset.
type InvalidMagicError struct {
	Offset int64
	Want   []byte
	Got    []byte
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("invalid magic at offset %d: want % x, got % x", e.Offset, e.Want, e.Got)
}

// TruncatedError signals a read that ran off the end of the buffer.
type TruncatedError struct {
	Offset int64
	Needed int64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated at offset %d: needed %d more bytes", e.Offset, e.Needed)
}

// UnsupportedArchitectureError signals a recognized-but-unhandled
// machine/class/endianness code.
type UnsupportedArchitectureError struct {
	Field string
	Code  uint32
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("unsupported %s: 0x%x", e.Field, e.Code)
}

// FileTooLargeError is returned by Open when a file exceeds the configured
// max-file-size cap; it is one of only two errors that prevent any verdict
// from ever being emitted (see the pipeline's error-handling design).
type FileTooLargeError struct {
	Limit int64
	Found int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes exceeds limit %d", e.Found, e.Limit)
}

// ReadLimitExceededError is returned by ReadAt when servicing the request
// would push bytes_read past max_read_bytes. The budget is left unchanged.
type ReadLimitExceededError struct {
	Limit   int64
	Current int64
}

func (e *ReadLimitExceededError) Error() string {
	return fmt.Sprintf("read limit exceeded: current %d, limit %d", e.Current, e.Limit)
}

// ResourceExhaustedError signals a named resource (blocks, functions,
// instructions, ...) hit its configured cap mid-pass.
type ResourceExhaustedError struct {
	Resource string
	Used     int64
	Limit    int64
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("resource exhausted: %s used %d of %d", e.Resource, e.Used, e.Limit)
}

// TimeoutError signals a budget-driven deadline was crossed.
type TimeoutError struct {
	Seconds float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %.3fs", e.Seconds)
}

// MalformedHeaderError wraps a free-text reason for a header that parsed
// structurally but failed a semantic check (bad field combination, etc).
type MalformedHeaderError struct {
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header: %s", e.Reason)
}

// InvalidRvaError signals an RVA with no backing section.
type InvalidRvaError struct {
	Rva uint64
}

func (e *InvalidRvaError) Error() string {
	return fmt.Sprintf("invalid rva: 0x%x", e.Rva)
}

// InvalidOffsetError signals a file offset outside the buffer.
type InvalidOffsetError struct {
	Offset int64
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset: %d", e.Offset)
}

// SectionNotFoundError signals a lookup by name that found nothing.
type SectionNotFoundError struct {
	Name string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("section not found: %s", e.Name)
}

// DataDirectoryNotFoundError signals an out-of-range or absent PE data
// directory index.
type DataDirectoryNotFoundError struct {
	Index int
}

func (e *DataDirectoryNotFoundError) Error() string {
	return fmt.Sprintf("data directory not found: index %d", e.Index)
}

// SerializationError wraps a codec-level failure.
type SerializationError struct {
	Detail string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s", e.Detail)
}

// Diagnostic is a component-local error recovered by skipping the
// offending element; it is collected into an artifact's Errors list
// rather than failing the operation that produced it.
type Diagnostic struct {
	Stage string
	Kind  ErrorType
	Err   error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s/%s] %v", d.Stage, d.Kind, d.Err)
}

// Unwrap returns the underlying error so errors.Is/errors.As can reach it.
func (d Diagnostic) Unwrap() error {
	return d.Err
}

// NewDiagnostic builds a Diagnostic for the given pipeline stage.
func NewDiagnostic(stage string, kind ErrorType, err error) Diagnostic {
	return Diagnostic{Stage: stage, Kind: kind, Err: err}
}

// MultiError aggregates independent errors collected while continuing
// past them (used by parsers walking a table of fallible entries).
type MultiError struct {
	Errors []error
}

// NewMultiError filters nils and wraps the remainder.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}
