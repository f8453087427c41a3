// Package errors provides the normalized error value used across the client
package errors

import (
	stderrors "errors"
	"strings"
)

// GenericMessage is shown when an error carries no user-facing message.
const GenericMessage = "An unexpected error occurred"

// Error types
const (
	TypeValidation     = "VALIDATION_FAILED"
	TypeUpload         = "UPLOAD_FAILED"
	TypeChat           = "CHAT_FAILED"
	TypeListDocuments  = "LIST_DOCUMENTS_FAILED"
	TypeClearDocuments = "CLEAR_DOCUMENTS_FAILED"
	TypeHealth         = "HEALTH_FAILED"
	TypeListModels     = "LIST_MODELS_FAILED"
)

// Predefined backend errors. Each Message is the fixed fallback shown when the
// backend gives no usable detail, and they are all distinct so the user can
// tell which operation failed.

// ErrUploadFailed indicates a document upload was not accepted
var ErrUploadFailed = &StandardError{
	Type:    TypeUpload,
	Message: "Upload failed",
}

// ErrChatFailed indicates a question could not be answered
var ErrChatFailed = &StandardError{
	Type:    TypeChat,
	Message: "Chat request failed",
}

// ErrListDocumentsFailed indicates the backend document list is unavailable
var ErrListDocumentsFailed = &StandardError{
	Type:    TypeListDocuments,
	Message: "Could not list documents",
}

// ErrClearDocumentsFailed indicates the backend did not confirm the clear
var ErrClearDocumentsFailed = &StandardError{
	Type:    TypeClearDocuments,
	Message: "Could not clear documents",
}

// ErrHealthFailed indicates the health snapshot is unavailable
var ErrHealthFailed = &StandardError{
	Type:    TypeHealth,
	Message: "Health check failed",
}

// ErrListModelsFailed indicates the model catalog is unavailable
var ErrListModelsFailed = &StandardError{
	Type:    TypeListModels,
	Message: "Could not list models",
}

// StandardError represents a standard application error
type StandardError struct {
	Type    string
	Message string
	// Status is the backend HTTP status, zero when the request never got a response.
	Status int
	Cause  error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches any StandardError of the same type, so errors.Is(err, ErrChatFailed)
// holds for every chat failure regardless of its message.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithCause adds a cause to the error
func (e *StandardError) WithCause(cause error) *StandardError {
	c := *e
	c.Cause = cause
	return &c
}

// WithStatus records the backend status code
func (e *StandardError) WithStatus(status int) *StandardError {
	c := *e
	c.Status = status
	return &c
}

// WithDetail replaces the message with detail unless detail is blank
func (e *StandardError) WithDetail(detail string) *StandardError {
	c := *e
	if d := strings.TrimSpace(detail); d != "" {
		c.Message = d
	}
	return &c
}

// Validation creates a client-side validation error
func Validation(message string) *StandardError {
	return &StandardError{Type: TypeValidation, Message: message}
}

// IsValidation reports whether err is a client-side validation failure
func IsValidation(err error) bool {
	var se *StandardError
	return stderrors.As(err, &se) && se.Type == TypeValidation
}

// UserMessage returns the text to show for err. It is never empty for a
// non-nil error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StandardError
	if stderrors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	return GenericMessage
}
