package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/service"
)

type CorpusInterface interface {
	IngestCorpus(ctx context.Context, input service.IngestCorpusInput) ([]*domain.Chunk, *service.BatchReport, error)
}

type CorpusHandler struct {
	svc CorpusInterface
}

func NewCorpusHandler(svc CorpusInterface) *CorpusHandler {
	return &CorpusHandler{svc: svc}
}

type IngestCorpusRequest struct {
	Content         string `json:"content"`
	SourceKind      string `json:"source_kind,omitempty"`
	SourceReference string `json:"source_reference"`
	Municipality    string `json:"municipality,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	ApprovalStatus  string `json:"approval_status,omitempty"`
}

func (h *CorpusHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestCorpusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.SourceReference == "" {
		api.Error(w, http.StatusBadRequest, "source_reference is required")
		return
	}

	chunks, report, err := h.svc.IngestCorpus(r.Context(), service.IngestCorpusInput{
		Content:         req.Content,
		SourceKind:      domain.SourceKind(req.SourceKind),
		SourceReference: req.SourceReference,
		Municipality:    req.Municipality,
		DocumentType:    domain.DocumentType(req.DocumentType),
		ApprovalStatus:  domain.ApprovalStatus(req.ApprovalStatus),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		responses[i] = chunkToResponse(c)
	}

	api.Success(w, http.StatusCreated, BatchResponse{Chunks: responses, Report: report})
}
