package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
	"github.com/roach88/relaymigrate/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected call or failed scenario
	ExitCommandError = 2 // Command error (bad config, database, node unreachable, etc.)
)

// Output error codes.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeConfigInvalid  = "E002" // Configuration failed validation
	ErrCodeDatabase       = "E003" // Database open/read/write failure
	ErrCodeNotInitialized = "E004" // Database has no administrator yet
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeBackend        = "E006" // Node or collaborator failure
	ErrCodeRejected       = "E010" // Engine rejected the call
	ErrCodeScenarioFailed = "E011" // One or more scenarios failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // Output error code ("E001", ...); empty means ErrCodeGeneric
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
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// GetErrCode extracts the output error code from an error.
func GetErrCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrCode != "" {
		return exitErr.ErrCode
	}
	return ErrCodeGeneric
}

// classify turns an engine or store error into an ExitError.
//
// Call-aborting engine errors are the caller's fault and exit 1 with
// ErrCodeRejected. Everything else is infrastructure and exits 2.
func classify(message string, err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	e := WrapExitError(ExitCommandError, message, err)
	switch {
	case engine.IsCallError(err):
		e.Code = ExitFailure
		e.ErrCode = ErrCodeRejected
	case errors.Is(err, store.ErrNotInitialized):
		e.ErrCode = ErrCodeNotInitialized
	case errors.Is(err, store.ErrAdminMismatch), errors.Is(err, store.ErrConflict):
		e.ErrCode = ErrCodeDatabase
	default:
		e.ErrCode = ErrCodeBackend
	}
	return e
}

// errorDetails returns structured context for err, if any.
func errorDetails(err error) any {
	var ee *engine.Error
	if !errors.As(err, &ee) {
		return nil
	}
	details := map[string]any{"code": string(ee.Code), "op": ee.Op}
	if ee.Entity != domain.ZeroAddress {
		details["entity"] = ee.Entity.Hex()
	}
	if ee.Index >= 0 {
		details["index"] = ee.Index
	}
	return details
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
// text is printed in text mode; data is encoded in JSON mode.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, text)
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

// Report writes err through Error using its output code.
func (f *OutputFormatter) Report(err error) error {
	return f.Error(GetErrCode(err), err.Error(), errorDetails(err))
}

// VerboseLog outputs a message only if verbose mode is enabled.
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
