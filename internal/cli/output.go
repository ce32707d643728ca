package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kr/pretty"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // query valid, scenarios passed
	ExitFailure      = 1 // diagnostics reported or scenarios failed
	ExitCommandError = 2 // schema, document, config or database unusable
)

// Status values of a CLIResponse.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ExitError carries the exit code a command finishes with.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause, usually a *LoadError
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

// IsExitError reports whether err carries an exit code.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// GetExitCode extracts the exit code from an error. Errors without one
// count as failures.
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

// OutputFormatter writes command reports, either as text or wrapped in a
// CLIResponse envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // progress lines; Writer when nil
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"` // the report, also on failure
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a command error, or the first diagnostic of a failed
// report.
type CLIError struct {
	Code    string `json:"code"` // E0xx for load errors, E1xx for diagnostics
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter writes JSON envelopes.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes a report. Text output is the report's String form.
func (f *OutputFormatter) Success(report any) error {
	return f.report(CLIResponse{Status: StatusOK, Data: report})
}

// Failure writes a report that failed, such as a query with diagnostics. In
// JSON the envelope also carries code and message; text output is the report
// alone, since it already lists its diagnostics.
func (f *OutputFormatter) Failure(code, message string, report any) error {
	return f.report(CLIResponse{Status: StatusError, Data: report, Error: &CLIError{Code: code, Message: message}})
}

func (f *OutputFormatter) report(resp CLIResponse) error {
	if f.JSON() {
		return f.encode(resp)
	}
	_, err := fmt.Fprintln(f.Writer, resp.Data)
	return err
}

// Error writes a command error that produced no report.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: StatusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %# v\n", pretty.Formatter(details))
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog writes a progress line with --verbose. It never goes to Writer
// when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
