package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/service"
)

type InsightExtractorInterface interface {
	ExtractInsights(ctx context.Context, input service.ExtractInsightsInput) ([]service.LearningInsight, *service.BatchReport, error)
}

type InsightHandler struct {
	svc InsightExtractorInterface
}

func NewInsightHandler(svc InsightExtractorInterface) *InsightHandler {
	return &InsightHandler{svc: svc}
}

type ExtractInsightsRequest struct {
	Municipality string `json:"municipality,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

type ExtractInsightsResponse struct {
	Insights []service.LearningInsight `json:"insights"`
	Report   *service.BatchReport      `json:"report"`
}

// Extract runs insight extraction over the stored feedback in the requested
// scope and returns the patterns it distilled.
func (h *InsightHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	insights, report, err := h.svc.ExtractInsights(r.Context(), service.ExtractInsightsInput{
		Municipality: req.Municipality,
		DocumentType: domain.DocumentType(req.DocumentType),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ExtractInsightsResponse{
		Insights: insights,
		Report:   report,
	})
}
