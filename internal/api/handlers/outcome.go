package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/domain"
)

type OutcomeInterface interface {
	ApplyApproval(ctx context.Context, outcome *domain.ApprovalOutcome) ([]*domain.Chunk, error)
	ApplyRejection(ctx context.Context, outcome *domain.RejectionOutcome) ([]*domain.Chunk, error)
}

type OutcomeHandler struct {
	svc OutcomeInterface
}

func NewOutcomeHandler(svc OutcomeInterface) *OutcomeHandler {
	return &OutcomeHandler{svc: svc}
}

type SuccessfulElementRequest struct {
	Aspect     string `json:"aspect"`
	Reason     string `json:"reason,omitempty"`
	Replicable bool   `json:"replicable"`
}

type ApprovalOutcomeRequest struct {
	SourceReference    string                     `json:"source_reference"`
	Municipality       string                     `json:"municipality,omitempty"`
	ProjectName        string                     `json:"project_name,omitempty"`
	DocumentType       string                     `json:"document_type,omitempty"`
	ApprovalDate       string                     `json:"approval_date,omitempty"`
	ApprovalSpeed      string                     `json:"approval_speed,omitempty"`
	GoldenPatterns     []string                   `json:"golden_patterns,omitempty"`
	SuccessfulElements []SuccessfulElementRequest `json:"successful_elements,omitempty"`
}

type RejectionReasonRequest struct {
	Category      string `json:"category,omitempty"`
	SpecificIssue string `json:"specific_issue"`
	Requirement   string `json:"requirement,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

type RejectionOutcomeRequest struct {
	SourceReference     string                   `json:"source_reference"`
	Municipality        string                   `json:"municipality,omitempty"`
	ProjectName         string                   `json:"project_name,omitempty"`
	DocumentType        string                   `json:"document_type,omitempty"`
	RejectionDate       string                   `json:"rejection_date,omitempty"`
	NegativeConstraints []string                 `json:"negative_constraints,omitempty"`
	RejectionReasons    []RejectionReasonRequest `json:"rejection_reasons,omitempty"`
}

type OutcomeResponse struct {
	Learned []*ChunkResponse `json:"learned"`
}

func (h *OutcomeHandler) Approval(w http.ResponseWriter, r *http.Request) {
	var req ApprovalOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceReference == "" {
		api.Error(w, http.StatusBadRequest, "source_reference is required")
		return
	}

	elements := make([]domain.SuccessfulElement, len(req.SuccessfulElements))
	for i, e := range req.SuccessfulElements {
		elements[i] = domain.SuccessfulElement{
			Aspect:     e.Aspect,
			Reason:     e.Reason,
			Replicable: e.Replicable,
		}
	}

	outcome := &domain.ApprovalOutcome{
		SourceReference:    req.SourceReference,
		Municipality:       req.Municipality,
		ProjectName:        req.ProjectName,
		DocumentType:       domain.DocumentType(req.DocumentType),
		ApprovalDate:       req.ApprovalDate,
		ApprovalSpeed:      domain.ApprovalSpeed(req.ApprovalSpeed),
		GoldenPatterns:     req.GoldenPatterns,
		SuccessfulElements: elements,
		ReceivedAt:         time.Now().UTC(),
	}

	chunks, err := h.svc.ApplyApproval(r.Context(), outcome)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, outcomeResponse(chunks))
}

func (h *OutcomeHandler) Rejection(w http.ResponseWriter, r *http.Request) {
	var req RejectionOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceReference == "" {
		api.Error(w, http.StatusBadRequest, "source_reference is required")
		return
	}

	reasons := make([]domain.RejectionReason, len(req.RejectionReasons))
	for i, reason := range req.RejectionReasons {
		reasons[i] = domain.RejectionReason{
			Category:      reason.Category,
			SpecificIssue: reason.SpecificIssue,
			Requirement:   reason.Requirement,
			Severity:      domain.Severity(reason.Severity),
		}
	}

	outcome := &domain.RejectionOutcome{
		SourceReference:     req.SourceReference,
		Municipality:        req.Municipality,
		ProjectName:         req.ProjectName,
		DocumentType:        domain.DocumentType(req.DocumentType),
		RejectionDate:       req.RejectionDate,
		NegativeConstraints: req.NegativeConstraints,
		RejectionReasons:    reasons,
		ReceivedAt:          time.Now().UTC(),
	}

	chunks, err := h.svc.ApplyRejection(r.Context(), outcome)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, outcomeResponse(chunks))
}

func outcomeResponse(chunks []*domain.Chunk) OutcomeResponse {
	learned := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		learned[i] = chunkToResponse(c)
	}
	return OutcomeResponse{Learned: learned}
}
