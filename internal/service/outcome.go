package service

import (
	"context"
	"fmt"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/scoring"
	"github.com/norddok/norddok/internal/telemetry"
)

// ChunkAdder is the slice of the chunk store the outcome ingestor needs.
type ChunkAdder interface {
	AddChunksBatch(ctx context.Context, inputs []AddChunkInput) ([]*domain.Chunk, *BatchReport, error)
}

// OutcomeArchiver stores the raw outcome payload for provenance, keyed by the
// source reference it was reported under.
type OutcomeArchiver interface {
	ArchiveOutcome(ctx context.Context, sourceReference string, payload any) error
}

// OutcomeService turns structured reviewer verdicts into stored knowledge:
// approvals become golden patterns, rejections become negative constraints.
type OutcomeService struct {
	store    ChunkAdder
	archiver OutcomeArchiver
}

// NewOutcomeService creates a new OutcomeService instance. The archiver is
// optional; pass nil to skip provenance archiving.
func NewOutcomeService(store ChunkAdder, archiver OutcomeArchiver) *OutcomeService {
	return &OutcomeService{
		store:    store,
		archiver: archiver,
	}
}

// ApplyApproval records an approval outcome: one chunk per golden pattern and
// one per successful element, each scored by the additive approval-pattern
// formula with its breakdown flattened into chunk metadata.
func (s *OutcomeService) ApplyApproval(ctx context.Context, outcome *domain.ApprovalOutcome) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "OutcomeService.ApplyApproval", telemetry.SpanAttributes{
		SourceReference: outcome.SourceReference,
		Municipality:    outcome.Municipality,
		Operation:       "apply_approval",
	})
	defer span.End()

	if err := domain.ValidateApprovalOutcome(outcome); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid approval outcome", err)
	}

	replicableTrue := true
	var inputs []AddChunkInput

	for _, pattern := range outcome.GoldenPatterns {
		confidence, breakdown := scoring.ApprovalPatternConfidence(
			outcome.Municipality, outcome.ApprovalSpeed, scoring.PatternTypeRecommended, true)

		metadata := breakdownMetadata(breakdown)
		metadata["response_type"] = "approval"
		metadata["project_name"] = outcome.ProjectName
		metadata["approval_date"] = outcome.ApprovalDate
		metadata["approval_speed"] = string(outcome.ApprovalSpeed)

		inputs = append(inputs, AddChunkInput{
			Content:         fmt.Sprintf("✅ RECOMMENDED (%s): %s", outcome.Municipality, pattern),
			SourceKind:      domain.SourceKindFeedback,
			SourceReference: outcome.SourceReference,
			Municipality:    outcome.Municipality,
			DocumentType:    outcome.DocumentType,
			ApprovalStatus:  domain.ApprovalStatusApproved,
			ApprovalSpeed:   outcome.ApprovalSpeed,
			Replicable:      &replicableTrue,
			ConfidenceScore: &confidence,
			Metadata:        metadata,
		})
	}

	for _, element := range outcome.SuccessfulElements {
		confidence, breakdown := scoring.ApprovalPatternConfidence(
			outcome.Municipality, outcome.ApprovalSpeed, scoring.PatternTypeSuccessfulElement, element.Replicable)

		metadata := breakdownMetadata(breakdown)
		metadata["response_type"] = "approval"
		metadata["project_name"] = outcome.ProjectName
		metadata["replicable"] = element.Replicable

		content := fmt.Sprintf("Successful Approach (%s): %s", outcome.Municipality, element.Aspect)
		if element.Reason != "" {
			content += fmt.Sprintf(" | Why: %s", element.Reason)
		}

		replicable := element.Replicable
		inputs = append(inputs, AddChunkInput{
			Content:         content,
			SourceKind:      domain.SourceKindFeedback,
			SourceReference: outcome.SourceReference,
			Municipality:    outcome.Municipality,
			DocumentType:    outcome.DocumentType,
			ApprovalStatus:  domain.ApprovalStatusApproved,
			ApprovalSpeed:   outcome.ApprovalSpeed,
			Replicable:      &replicable,
			ConfidenceScore: &confidence,
			Metadata:        metadata,
		})
	}

	return s.apply(ctx, outcome.SourceReference, outcome, inputs)
}

// ApplyRejection records a rejection outcome: one chunk per negative
// constraint and one per rejection reason, all pinned to zero confidence so
// they are only ever surfaced as patterns to avoid.
func (s *OutcomeService) ApplyRejection(ctx context.Context, outcome *domain.RejectionOutcome) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "OutcomeService.ApplyRejection", telemetry.SpanAttributes{
		SourceReference: outcome.SourceReference,
		Municipality:    outcome.Municipality,
		Operation:       "apply_rejection",
	})
	defer span.End()

	if err := domain.ValidateRejectionOutcome(outcome); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid rejection outcome", err)
	}

	var inputs []AddChunkInput

	for _, constraint := range outcome.NegativeConstraints {
		inputs = append(inputs, AddChunkInput{
			Content:         fmt.Sprintf("⚠️ AVOID (Rejected by %s): %s", outcome.Municipality, constraint),
			SourceKind:      domain.SourceKindFeedback,
			SourceReference: outcome.SourceReference,
			Municipality:    outcome.Municipality,
			DocumentType:    outcome.DocumentType,
			ApprovalStatus:  domain.ApprovalStatusRejected,
			Metadata: map[string]any{
				"response_type":  "rejection",
				"project_name":   outcome.ProjectName,
				"rejection_date": outcome.RejectionDate,
			},
		})
	}

	for _, reason := range outcome.RejectionReasons {
		severity := reason.Severity
		if severity == "" {
			severity = domain.SeverityUnknown
		}

		content := fmt.Sprintf("Rejection Reason (%s): %s", outcome.Municipality, reason.SpecificIssue)
		if reason.Requirement != "" {
			content += fmt.Sprintf(" | Requirement: %s", reason.Requirement)
		}

		inputs = append(inputs, AddChunkInput{
			Content:         content,
			SourceKind:      domain.SourceKindFeedback,
			SourceReference: outcome.SourceReference,
			Municipality:    outcome.Municipality,
			DocumentType:    outcome.DocumentType,
			ApprovalStatus:  domain.ApprovalStatusRejected,
			Metadata: map[string]any{
				"response_type": "rejection",
				"severity":      string(severity),
				"category":      reason.Category,
			},
		})
	}

	return s.apply(ctx, outcome.SourceReference, outcome, inputs)
}

func (s *OutcomeService) apply(ctx context.Context, sourceReference string, payload any, inputs []AddChunkInput) ([]*domain.Chunk, error) {
	chunks, _, err := s.store.AddChunksBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveOutcome(ctx, sourceReference, payload); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "archive outcome payload", err)
		}
	}

	return chunks, nil
}

// breakdownMetadata flattens a confidence breakdown into scalar metadata keys
// so the calculation stays inspectable on the stored chunk.
func breakdownMetadata(b scoring.Breakdown) map[string]any {
	return map[string]any{
		"confidence_base":               b.Base,
		"confidence_municipality_bonus": b.MunicipalityBonus,
		"confidence_speed_bonus":        b.SpeedBonus,
		"confidence_type_bonus":         b.TypeBonus,
		"confidence_pattern_type":       b.PatternType,
		"confidence_replicability":      b.ReplicabilityFactor,
		"confidence_calculation":        b.Calculation,
	}
}
