// Package errs holds the error taxonomy shared by services and handlers.
// Handlers classify with errors.Is against the kind sentinels below.
package errs

import "errors"

// Kinds.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidHandle = errors.New("invalid session handle")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBackend       = errors.New("text generation backend failure")
)

// Specific conditions, each wrapping exactly one kind.
var (
	ErrTaskNotFound    = kind(ErrNotFound, "analysis task not found")
	ErrSessionNotFound = kind(ErrNotFound, "session not found")
	ErrDiaryNotFound   = kind(ErrNotFound, "diary not found")
	ErrUserNotFound    = kind(ErrNotFound, "user not found")

	ErrMaxRetriesExhausted = kind(ErrInvalidState, "task is not retryable: max retries exhausted")
	ErrTaskNotFailed       = kind(ErrInvalidState, "task is not retryable: status is not FAILED")
	ErrAlreadyAnalyzed     = kind(ErrInvalidState, "diary has already been analyzed")
	ErrTurnInProgress      = kind(ErrInvalidState, "a chat turn is already in progress for this session")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}
