package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Benchmark or validation failure (results differ, runs failed, invalid plan)
	ExitCommandError = 2 // Command error (missing file, unusable flags, etc.)
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric            = "E001"
	ErrCodeInvalidConfig      = "E002"
	ErrCodeLoad               = "E003"
	ErrCodeUnknownOperation   = "E004"
	ErrCodeDuplicateOperation = "E005"
	ErrCodeNotEquivalent      = "E006"
	ErrCodeRunFailures        = "E007"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode maps an error from the benchmark packages to a response code.
func ErrorCode(err error) string {
	switch {
	case bencherr.IsInvalidConfig(err):
		return ErrCodeInvalidConfig
	case bencherr.IsLoadError(err):
		return ErrCodeLoad
	case bencherr.IsUnknownOperation(err):
		return ErrCodeUnknownOperation
	case bencherr.IsDuplicateOperation(err):
		return ErrCodeDuplicateOperation
	default:
		return ErrCodeGeneric
	}
}

// exitCodeFor sorts errors into plan problems, which fail the command,
// and everything else, which is a command error.
func exitCodeFor(err error) int {
	if bencherr.IsInvalidConfig(err) || bencherr.IsDuplicateOperation(err) || bencherr.IsUnknownOperation(err) {
		return ExitFailure
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Markdown falls back to text for anything that is not a report.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	_ = f.Error(ErrorCode(err), fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exitCodeFor(err), message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
