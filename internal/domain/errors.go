package domain

import "fmt"

// Error codes map onto HTTP statuses at the API boundary.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// DomainError is an error with a stable code and a client-safe message.
// The cause, if any, is for logs only.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code and message, so a sentinel
// still matches after WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// WithCause returns a copy of e that wraps err.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Validation errors
var (
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrUnsupportedFileType  = NewDomainError(ErrCodeValidation, "only PDF and plain text documents are supported")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidCursor        = NewDomainError(ErrCodeValidation, "invalid cursor")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIndexNotFound    = NewDomainError(ErrCodeNotFound, "similarity index not found")
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "original file not available")
)

// Storage errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
