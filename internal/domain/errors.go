package domain

import "fmt"

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
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
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

// Common domain error codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeCollaborator = "COLLABORATOR_ERROR"
	ErrCodeCorruption   = "INTERNAL_CONSISTENCY"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidSourceKind     = NewDomainError(ErrCodeValidation, "invalid source kind")
	ErrInvalidApprovalStatus = NewDomainError(ErrCodeValidation, "invalid approval status")
	ErrInvalidDocumentType   = NewDomainError(ErrCodeValidation, "invalid document type")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrConfidenceOutOfRange  = NewDomainError(ErrCodeValidation, "confidence score out of range")
)

// Not found errors
var (
	ErrChunkNotFound  = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrSourceNotFound = NewDomainError(ErrCodeNotFound, "no chunks recorded for source reference")
)

// Collaborator errors
var (
	ErrEmbeddingGateway = NewDomainError(ErrCodeCollaborator, "embedding gateway failed")
	ErrArchiveStorage   = NewDomainError(ErrCodeCollaborator, "outcome archive storage failed")
)

// Internal consistency errors. Raised when persisted state violates an
// invariant the store is supposed to maintain.
var (
	ErrCorruptRejectedChunk = NewDomainError(ErrCodeCorruption, "rejected chunk carries nonzero confidence")
	ErrCorruptEmbedding     = NewDomainError(ErrCodeCorruption, "persisted embedding has wrong dimensionality")
)
