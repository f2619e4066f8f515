package util

import (
	"errors"
	"fmt"
)

var (
	ErrDefinitionNotFound     = errors.New("definition not found")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAnswerNotFound         = errors.New("answer not found")
	ErrDefinitionNotPublished = errors.New("definition not published or not accessible")
	ErrDefinitionPublished    = errors.New("definition already published, questions are frozen")
	ErrMaxAttemptsExceeded    = errors.New("max attempts exceeded")
	ErrAttemptClosed          = errors.New("attempt already submitted")
	ErrAttemptExpired         = errors.New("attempt expired")
	ErrAttemptNumberConflict  = errors.New("attempt number conflict, retries exhausted")
	ErrPermissionDenied       = errors.New("permission denied")
)

// ValidationError is a caller-visible, non-retryable rejection of a malformed
// definition or answer payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
