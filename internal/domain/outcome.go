package domain

import (
	"fmt"
	"time"
)

// ApprovalSpeed is a categorical signal describing how quickly a reviewer
// approved a submission. Fast approval is a proxy for clear compliance.
type ApprovalSpeed string

const (
	ApprovalSpeedFast     ApprovalSpeed = "fast"
	ApprovalSpeedStandard ApprovalSpeed = "standard"
	ApprovalSpeedNormal   ApprovalSpeed = "normal" // parser alias for standard
	ApprovalSpeedSlow     ApprovalSpeed = "slow"
	ApprovalSpeedUnknown  ApprovalSpeed = "unknown"
)

// Severity grades a rejection reason. Tracked as metadata only; it never
// lifts a rejected chunk's confidence above zero.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityUnknown  Severity = "unknown"
)

// SuccessfulElement is an observed aspect of a submission that a reviewer
// called out positively.
type SuccessfulElement struct {
	Aspect     string
	Reason     string
	Replicable bool
}

// ApprovalOutcome is a structured reviewer approval: patterns to prefer in
// future submissions, plus provenance for traceability.
type ApprovalOutcome struct {
	SourceReference    string
	Municipality       string
	ProjectName        string
	DocumentType       DocumentType
	ApprovalDate       string
	ApprovalSpeed      ApprovalSpeed
	GoldenPatterns     []string
	SuccessfulElements []SuccessfulElement
	ReceivedAt         time.Time
}

// RejectionReason is one concrete reason a submission was rejected.
type RejectionReason struct {
	Category      string
	SpecificIssue string
	Requirement   string
	Severity      Severity
}

// RejectionOutcome is a structured reviewer rejection: constraints to avoid
// in future submissions.
type RejectionOutcome struct {
	SourceReference     string
	Municipality        string
	ProjectName         string
	DocumentType        DocumentType
	RejectionDate       string
	NegativeConstraints []string
	RejectionReasons    []RejectionReason
	ReceivedAt          time.Time
}

// ValidateApprovalOutcome validates an ApprovalOutcome instance
func ValidateApprovalOutcome(o *ApprovalOutcome) error {
	if o == nil {
		return fmt.Errorf("approval outcome cannot be nil")
	}
	if o.SourceReference == "" {
		return fmt.Errorf("approval outcome SourceReference is required")
	}
	if len(o.GoldenPatterns) == 0 && len(o.SuccessfulElements) == 0 {
		return fmt.Errorf("approval outcome must carry at least one pattern or element")
	}
	if o.DocumentType != "" && !isValidDocumentType(o.DocumentType) {
		return fmt.Errorf("approval outcome DocumentType is invalid: %s", o.DocumentType)
	}
	return nil
}

// ValidateRejectionOutcome validates a RejectionOutcome instance
func ValidateRejectionOutcome(o *RejectionOutcome) error {
	if o == nil {
		return fmt.Errorf("rejection outcome cannot be nil")
	}
	if o.SourceReference == "" {
		return fmt.Errorf("rejection outcome SourceReference is required")
	}
	if len(o.NegativeConstraints) == 0 && len(o.RejectionReasons) == 0 {
		return fmt.Errorf("rejection outcome must carry at least one constraint or reason")
	}
	if o.DocumentType != "" && !isValidDocumentType(o.DocumentType) {
		return fmt.Errorf("rejection outcome DocumentType is invalid: %s", o.DocumentType)
	}
	return nil
}
