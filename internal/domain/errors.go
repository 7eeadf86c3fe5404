package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeTransientProvider = "TRANSIENT_PROVIDER"
	ErrCodeStoreQuery        = "STORE_QUERY_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query and filters cannot both be empty")
	ErrEmptyMessage      = NewDomainError(ErrCodeValidation, "message cannot be empty")
	ErrInvalidDateRange  = NewDomainError(ErrCodeValidation, "date_from must not be after date_to")
	ErrInvalidDate       = NewDomainError(ErrCodeValidation, "date must be in YYYY-MM-DD format")
	ErrInvalidSearchMode = NewDomainError(ErrCodeValidation, "mode must be one of semantic, filter, hybrid")
	ErrInvalidPageSize   = NewDomainError(ErrCodeValidation, "page_size must be between 1 and 100")
)

// Not found errors
var (
	ErrGrantNotFound   = NewDomainError(ErrCodeNotFound, "grant not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session has no cached results")
)

// Provider errors. Transient failures are retried by the immediate caller
// only, never swallowed silently.
var (
	ErrProviderTimeout   = NewDomainError(ErrCodeTransientProvider, "provider call timed out")
	ErrProviderRateLimit = NewDomainError(ErrCodeTransientProvider, "provider rate limit exceeded")
)

// IsTransient reports whether err is a transient provider failure that the
// immediate caller may retry.
func IsTransient(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == ErrCodeTransientProvider
}
