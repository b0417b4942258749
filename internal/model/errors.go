package model

import "errors"

var (
	ErrChatDoesNotExist  = errors.New("chat does not exist")
	ErrCompletionFailed  = errors.New("completion failed")
	ErrStateDoesNotExist = errors.New("client state does not exist")
	ErrStateCorrupted    = errors.New("client state is corrupted")
)

// ValidationError rejects a request before any store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}
