package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Op      string
	Reason  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Code, e.Op, e.Message)
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeService       = "SERVICE_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
)

// Storage failure reasons
const (
	StorageReasonConnectivity   = "connectivity"
	StorageReasonSchemaMismatch = "schema_mismatch"
	StorageReasonValidation     = "validation"
)

// NewConfigurationError reports invalid parameters or a collection that cannot be
// used with the configured dimension. Not retryable.
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// NewServiceError reports a failed call to the embedding or answer service.
func NewServiceError(op, message string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeService,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewStorageError reports a failed vector store operation.
func NewStorageError(op, reason, message string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeStorage,
		Op:      op,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// NewValidationError reports invalid caller input.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsConfigurationError(err error) bool { return CodeOf(err) == ErrCodeConfiguration }

func IsServiceError(err error) bool { return CodeOf(err) == ErrCodeService }

func IsStorageError(err error) bool { return CodeOf(err) == ErrCodeStorage }

func IsValidationError(err error) bool { return CodeOf(err) == ErrCodeValidation }

// StorageReason returns the reason attached to a storage error, or "".
func StorageReason(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Code == ErrCodeStorage {
		return de.Reason
	}
	return ""
}

var (
	ErrInvalidChunkSize    = NewConfigurationError("chunk size must be greater than zero")
	ErrInvalidChunkOverlap = NewConfigurationError("chunk overlap must be >= 0 and smaller than chunk size")
	ErrEmptySourceID       = NewValidationError("source id is required")
	ErrEmptyQuestion       = NewValidationError("question cannot be empty")
)
