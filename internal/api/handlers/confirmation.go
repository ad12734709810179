package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/norddok/norddok/internal/api"
)

type ConfirmationRecorder interface {
	RecordConfirmation(patternID string)
	ConfirmationCount(patternID string) int
}

// ConfirmationHandler records that a stored pattern was used successfully.
// The tally feeds the background rescore pass.
type ConfirmationHandler struct {
	svc ConfirmationRecorder
}

func NewConfirmationHandler(svc ConfirmationRecorder) *ConfirmationHandler {
	return &ConfirmationHandler{svc: svc}
}

type ConfirmationRequest struct {
	PatternID string `json:"pattern_id"`
}

type ConfirmationResponse struct {
	PatternID     string `json:"pattern_id"`
	Confirmations int    `json:"confirmations"`
}

func (h *ConfirmationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req ConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PatternID == "" {
		api.Error(w, http.StatusBadRequest, "pattern_id is required")
		return
	}

	h.svc.RecordConfirmation(req.PatternID)

	api.Success(w, http.StatusOK, ConfirmationResponse{
		PatternID:     req.PatternID,
		Confirmations: h.svc.ConfirmationCount(req.PatternID),
	})
}
