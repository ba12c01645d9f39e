// Package bencherr defines the error taxonomy shared by the loader, the
// operation registry, the equivalence checker and the timing harness.
//
// Configuration and registry errors are fatal to a run. Implementation
// failures are recorded per run and surfaced in the report.
package bencherr

import (
	"errors"
	"fmt"
	"strings"
)

// LoadError reports malformed input found while reading a dataset.
type LoadError struct {
	Path   string // file being read
	Line   int    // 1-based line in the file (0 if not tied to a line)
	Column string // column name (empty if the whole row is malformed)
	Value  string // offending raw cell value
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("load %s", e.Path))
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column %q", e.Column))
	}
	if e.Value != "" {
		parts = append(parts, fmt.Sprintf("value %q", e.Value))
	}
	msg := strings.Join(parts, ", ")
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// UnknownOperationError is returned when looking up an unregistered name.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Name)
}

// DuplicateOperationError is returned when a name is registered twice.
type DuplicateOperationError struct {
	Name string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operation %q already registered", e.Name)
}

// InvalidConfigError reports a bad iteration count, a missing key column,
// an invalid plan or operation parameters.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Reason
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// NewInvalidConfig builds an InvalidConfigError with a formatted reason.
func NewInvalidConfig(field, format string, args ...any) *InvalidConfigError {
	return &InvalidConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ImplementationFailure records an implementation returning an error or
// panicking during a timed or equivalence run.
type ImplementationFailure struct {
	Operation      string
	Implementation string
	Run            int // 1-based timed run, 0 for the equivalence run, negative for warm-up runs
	Panic          bool
	Err            error
}

func (e *ImplementationFailure) Error() string {
	kind := "failed"
	if e.Panic {
		kind = "panicked"
	}
	phase := fmt.Sprintf("run %d", e.Run)
	switch {
	case e.Run == 0:
		phase = "equivalence run"
	case e.Run < 0:
		phase = fmt.Sprintf("warm-up run %d", -e.Run)
	}
	return fmt.Sprintf("%s/%s %s in %s: %v", e.Operation, e.Implementation, kind, phase, e.Err)
}

func (e *ImplementationFailure) Unwrap() error {
	return e.Err
}

// IsLoadError returns true if err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsUnknownOperation returns true if err is or wraps an UnknownOperationError.
func IsUnknownOperation(err error) bool {
	var ue *UnknownOperationError
	return errors.As(err, &ue)
}

// IsDuplicateOperation returns true if err is or wraps a DuplicateOperationError.
func IsDuplicateOperation(err error) bool {
	var de *DuplicateOperationError
	return errors.As(err, &de)
}

// IsInvalidConfig returns true if err is or wraps an InvalidConfigError.
func IsInvalidConfig(err error) bool {
	var ce *InvalidConfigError
	return errors.As(err, &ce)
}

// IsImplementationFailure returns true if err is or wraps an ImplementationFailure.
func IsImplementationFailure(err error) bool {
	var fe *ImplementationFailure
	return errors.As(err, &fe)
}
