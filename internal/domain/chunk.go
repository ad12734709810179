package domain

import (
	"fmt"
	"time"
)

// SourceKind identifies where a knowledge chunk originated.
type SourceKind string

const (
	SourceKindRegulation      SourceKind = "regulation"
	SourceKindApprovedExample SourceKind = "approved_example"
	SourceKindFeedback        SourceKind = "feedback"
	SourceKindDerivedInsight  SourceKind = "derived_insight"
)

// ApprovalStatus records the authority verdict attached to a chunk.
type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusUnknown  ApprovalStatus = "unknown"
)

// DocumentType is a BR18 document code. Empty means the chunk applies to
// every document class.
type DocumentType string

const (
	DocumentTypeSTART DocumentType = "START"
	DocumentTypeITT   DocumentType = "ITT"
	DocumentTypeDBK   DocumentType = "DBK"
	DocumentTypeBSR   DocumentType = "BSR"
	DocumentTypeBPLAN DocumentType = "BPLAN"
	DocumentTypePFP   DocumentType = "PFP"
	DocumentTypeDIM   DocumentType = "DIM"
	DocumentTypeFUNK  DocumentType = "FUNK"
	DocumentTypeKPLA  DocumentType = "KPLA"
	DocumentTypeKRAP  DocumentType = "KRAP"
	DocumentTypeDKV   DocumentType = "DKV"
	DocumentTypeSLUT  DocumentType = "SLUT"
)

// Chunk is the atomic unit of knowledge: a text fragment with its embedding,
// provenance, scope tags and a dynamically maintained confidence score.
type Chunk struct {
	ID              string
	Content         string
	Embedding       []float32
	SourceKind      SourceKind
	SourceReference string
	Municipality    string       // empty = applies generally
	DocumentType    DocumentType // empty = applies to all document classes
	ConfidenceScore float64
	ApprovalStatus  ApprovalStatus
	Metadata        map[string]any // flat key -> scalar, for transparency/debugging
	CreatedAt       time.Time
}

// NewChunk creates a Chunk with the given identity and provenance.
func NewChunk(
	id, content string,
	sourceKind SourceKind,
	sourceReference string,
	createdAt time.Time,
) *Chunk {
	return &Chunk{
		ID:              id,
		Content:         content,
		SourceKind:      sourceKind,
		SourceReference: sourceReference,
		ApprovalStatus:  ApprovalStatusUnknown,
		Metadata:        map[string]any{},
		CreatedAt:       createdAt,
	}
}

// ValidateChunk validates a Chunk instance. Embeddings are validated
// separately against the store's configured dimensionality.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}

	if c.SourceReference == "" {
		return fmt.Errorf("chunk SourceReference is required")
	}

	if !isValidSourceKind(c.SourceKind) {
		return fmt.Errorf("chunk SourceKind is invalid: %s", c.SourceKind)
	}

	if !isValidApprovalStatus(c.ApprovalStatus) {
		return fmt.Errorf("chunk ApprovalStatus is invalid: %s", c.ApprovalStatus)
	}

	if c.DocumentType != "" && !isValidDocumentType(c.DocumentType) {
		return fmt.Errorf("chunk DocumentType is invalid: %s", c.DocumentType)
	}

	if c.ConfidenceScore < 0.0 || c.ConfidenceScore > 1.0 {
		return fmt.Errorf("chunk ConfidenceScore must be within [0.0, 1.0]: %f", c.ConfidenceScore)
	}

	if c.ApprovalStatus == ApprovalStatusRejected && c.ConfidenceScore != 0.0 {
		return fmt.Errorf("rejected chunk must carry zero confidence, got %f", c.ConfidenceScore)
	}

	return nil
}

// isValidSourceKind checks if a SourceKind is valid
func isValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindRegulation, SourceKindApprovedExample,
		SourceKindFeedback, SourceKindDerivedInsight:
		return true
	}
	return false
}

// isValidApprovalStatus checks if an ApprovalStatus is valid
func isValidApprovalStatus(s ApprovalStatus) bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusUnknown:
		return true
	}
	return false
}

// isValidDocumentType checks if a DocumentType is one of the BR18 codes
func isValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeSTART, DocumentTypeITT, DocumentTypeDBK, DocumentTypeBSR,
		DocumentTypeBPLAN, DocumentTypePFP, DocumentTypeDIM, DocumentTypeFUNK,
		DocumentTypeKPLA, DocumentTypeKRAP, DocumentTypeDKV, DocumentTypeSLUT:
		return true
	}
	return false
}

// StoreStats summarizes the store contents for reporting and monitoring.
type StoreStats struct {
	TotalChunks      int64
	BySourceKind     map[SourceKind]int64
	ByMunicipality   map[string]int64
	ByDocumentType   map[DocumentType]int64
	ByApprovalStatus map[ApprovalStatus]int64
	// Confidence histogram: high > 0.8, medium 0.5-0.8, low < 0.5.
	HighConfidence   int64
	MediumConfidence int64
	LowConfidence    int64
}
