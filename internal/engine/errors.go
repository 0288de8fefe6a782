package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/relaymigrate/internal/domain"
)

// ErrorCode categorizes call-aborting errors.
//
// Every code signals a caller mistake (wrong input, wrong phase or wrong
// caller). The call that returns one has changed no state. These errors are
// never retried by the engine.
type ErrorCode string

const (
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeInvalidEntity       ErrorCode = "INVALID_ENTITY"
	CodeDuplicateEntity     ErrorCode = "DUPLICATE_ENTITY"
	CodeRegistrationClosed  ErrorCode = "REGISTRATION_CLOSED"
	CodeRegistrationOpen    ErrorCode = "REGISTRATION_OPEN"
	CodePhaseAlreadyClosed  ErrorCode = "PHASE_ALREADY_CLOSED"
	CodeDeploymentClosed    ErrorCode = "DEPLOYMENT_CLOSED"
	CodeDeploymentNotClosed ErrorCode = "DEPLOYMENT_NOT_CLOSED"
	CodeAlreadyStarted      ErrorCode = "ALREADY_STARTED"
	CodeMigrationNotStarted ErrorCode = "MIGRATION_NOT_STARTED"
	CodeFirstPassIncomplete ErrorCode = "FIRST_PASS_INCOMPLETE"
	CodeAlreadyClosed       ErrorCode = "ALREADY_CLOSED"
	CodeIndexOutOfRange     ErrorCode = "INDEX_OUT_OF_RANGE"
)

// Error is a call-aborting error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the engine operation that failed, e.g. "register".
	Op string

	// Message is a human-readable description.
	Message string

	// Entity is the offending address, if any.
	Entity domain.Address

	// Index is the offending position (registration batch or pair index).
	// -1 when not applicable.
	Index int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Entity != domain.ZeroAddress {
		msg += fmt.Sprintf(" (entity=%s)", e.Entity.Hex())
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (index=%d)", e.Index)
	}
	return msg
}

// Is matches any *Error with the same code, so the package sentinels work
// with errors.Is regardless of Op, Entity or Index.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "caller is not the administrator", Index: -1}
	ErrInvalidEntity       = &Error{Code: CodeInvalidEntity, Message: "not a contract account", Index: -1}
	ErrDuplicateEntity     = &Error{Code: CodeDuplicateEntity, Message: "entity already registered", Index: -1}
	ErrRegistrationClosed  = &Error{Code: CodeRegistrationClosed, Message: "registration is closed", Index: -1}
	ErrRegistrationOpen    = &Error{Code: CodeRegistrationOpen, Message: "registration is still open", Index: -1}
	ErrPhaseAlreadyClosed  = &Error{Code: CodePhaseAlreadyClosed, Message: "registration already closed", Index: -1}
	ErrDeploymentClosed    = &Error{Code: CodeDeploymentClosed, Message: "deployment is closed", Index: -1}
	ErrDeploymentNotClosed = &Error{Code: CodeDeploymentNotClosed, Message: "deployment is not closed", Index: -1}
	ErrAlreadyStarted      = &Error{Code: CodeAlreadyStarted, Message: "migration already started", Index: -1}
	ErrMigrationNotStarted = &Error{Code: CodeMigrationNotStarted, Message: "migration not started", Index: -1}
	ErrFirstPassIncomplete = &Error{Code: CodeFirstPassIncomplete, Message: "no migration pass has completed", Index: -1}
	ErrAlreadyClosed       = &Error{Code: CodeAlreadyClosed, Message: "migration already closed", Index: -1}
	ErrIndexOutOfRange     = &Error{Code: CodeIndexOutOfRange, Message: "index beyond registered population", Index: -1}
)

// newError derives an error from a sentinel, attaching the operation.
func newError(op string, sentinel *Error) *Error {
	return &Error{Code: sentinel.Code, Op: op, Message: sentinel.Message, Index: -1}
}

// entityError derives an error about one entity of a registration batch.
func entityError(op string, sentinel *Error, entity domain.Address, index int) *Error {
	e := newError(op, sentinel)
	e.Entity = entity
	e.Index = index
	return e
}

// CodeOf returns the ErrorCode of err, or "" if err is not a call-aborting error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCallError reports whether err is a call-aborting error, as opposed to an
// infrastructure failure (store or collaborator I/O).
func IsCallError(err error) bool {
	return CodeOf(err) != ""
}
