package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/pagination"
	"github.com/norddok/norddok/internal/scoring"
	"github.com/norddok/norddok/internal/service"
)

type ChunkStoreInterface interface {
	AddChunk(ctx context.Context, input service.AddChunkInput) (*domain.Chunk, error)
	AddChunksBatch(ctx context.Context, inputs []service.AddChunkInput) ([]*domain.Chunk, *service.BatchReport, error)
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)
	ListChunks(ctx context.Context, input service.ListChunksInput) (*service.ChunkPageResult, error)
	DeleteBySource(ctx context.Context, sourceReference string, kind domain.SourceKind) (int64, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*domain.StoreStats, error)
}

type ChunkHandler struct {
	svc ChunkStoreInterface
}

func NewChunkHandler(svc ChunkStoreInterface) *ChunkHandler {
	return &ChunkHandler{svc: svc}
}

type AddChunkRequest struct {
	Content         string         `json:"content"`
	SourceKind      string         `json:"source_kind"`
	SourceReference string         `json:"source_reference"`
	Municipality    string         `json:"municipality,omitempty"`
	DocumentType    string         `json:"document_type,omitempty"`
	ApprovalStatus  string         `json:"approval_status,omitempty"`
	ApprovalSpeed   string         `json:"approval_speed,omitempty"`
	Replicable      *bool          `json:"replicable,omitempty"`
	Embedding       []float32      `json:"embedding,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type AddChunksBatchRequest struct {
	Chunks []AddChunkRequest `json:"chunks"`
}

type ChunkResponse struct {
	ID                 string         `json:"id"`
	Content            string         `json:"content"`
	SourceKind         string         `json:"source_kind"`
	SourceReference    string         `json:"source_reference"`
	Municipality       string         `json:"municipality,omitempty"`
	DocumentType       string         `json:"document_type,omitempty"`
	ConfidenceScore    float64        `json:"confidence_score"`
	ConfidenceCategory string         `json:"confidence_category"`
	ApprovalStatus     string         `json:"approval_status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"created_at"`
}

func chunkToResponse(c *domain.Chunk) *ChunkResponse {
	return &ChunkResponse{
		ID:                 c.ID,
		Content:            c.Content,
		SourceKind:         string(c.SourceKind),
		SourceReference:    c.SourceReference,
		Municipality:       c.Municipality,
		DocumentType:       string(c.DocumentType),
		ConfidenceScore:    c.ConfidenceScore,
		ConfidenceCategory: string(scoring.GetCategory(c.ConfidenceScore)),
		ApprovalStatus:     string(c.ApprovalStatus),
		Metadata:           c.Metadata,
		CreatedAt:          c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func addChunkRequestToInput(req AddChunkRequest) service.AddChunkInput {
	return service.AddChunkInput{
		Content:         req.Content,
		SourceKind:      domain.SourceKind(req.SourceKind),
		SourceReference: req.SourceReference,
		Municipality:    req.Municipality,
		DocumentType:    domain.DocumentType(req.DocumentType),
		ApprovalStatus:  domain.ApprovalStatus(req.ApprovalStatus),
		ApprovalSpeed:   domain.ApprovalSpeed(req.ApprovalSpeed),
		Replicable:      req.Replicable,
		Embedding:       req.Embedding,
		ConfidenceScore: req.ConfidenceScore,
		Metadata:        req.Metadata,
	}
}

func (h *ChunkHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddChunkRequest
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
	if req.SourceKind == "" {
		api.Error(w, http.StatusBadRequest, "source_kind is required")
		return
	}

	chunk, err := h.svc.AddChunk(r.Context(), addChunkRequestToInput(req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chunkToResponse(chunk))
}

type BatchResponse struct {
	Chunks []*ChunkResponse     `json:"chunks"`
	Report *service.BatchReport `json:"report"`
}

func (h *ChunkHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req AddChunksBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Chunks) == 0 {
		api.Error(w, http.StatusBadRequest, "chunks is required")
		return
	}

	inputs := make([]service.AddChunkInput, len(req.Chunks))
	for i, c := range req.Chunks {
		inputs[i] = addChunkRequestToInput(c)
	}

	chunks, report, err := h.svc.AddChunksBatch(r.Context(), inputs)
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

func (h *ChunkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	chunk, err := h.svc.GetChunk(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

func (h *ChunkHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.ListChunks(r.Context(), service.ListChunksInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChunkResponse, len(page.Items))
	for i, c := range page.Items {
		responses[i] = chunkToResponse(c)
	}

	api.Success(w, http.StatusOK, pagination.PageResult[*ChunkResponse]{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

type DeleteBySourceResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *ChunkHandler) DeleteBySource(w http.ResponseWriter, r *http.Request) {
	sourceReference := r.URL.Query().Get("source_reference")
	if sourceReference == "" {
		api.Error(w, http.StatusBadRequest, "source_reference is required")
		return
	}

	kind := domain.SourceKind(r.URL.Query().Get("source_kind"))

	deleted, err := h.svc.DeleteBySource(r.Context(), sourceReference, kind)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteBySourceResponse{Deleted: deleted})
}

func (h *ChunkHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type StatsResponse struct {
	TotalChunks      int64            `json:"total_chunks"`
	BySourceKind     map[string]int64 `json:"by_source_kind"`
	ByMunicipality   map[string]int64 `json:"by_municipality"`
	ByDocumentType   map[string]int64 `json:"by_document_type"`
	ByApprovalStatus map[string]int64 `json:"by_approval_status"`
	HighConfidence   int64            `json:"high_confidence"`
	MediumConfidence int64            `json:"medium_confidence"`
	LowConfidence    int64            `json:"low_confidence"`
}

func (h *ChunkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := StatsResponse{
		TotalChunks:      stats.TotalChunks,
		BySourceKind:     make(map[string]int64, len(stats.BySourceKind)),
		ByMunicipality:   stats.ByMunicipality,
		ByDocumentType:   make(map[string]int64, len(stats.ByDocumentType)),
		ByApprovalStatus: make(map[string]int64, len(stats.ByApprovalStatus)),
		HighConfidence:   stats.HighConfidence,
		MediumConfidence: stats.MediumConfidence,
		LowConfidence:    stats.LowConfidence,
	}
	for k, v := range stats.BySourceKind {
		resp.BySourceKind[string(k)] = v
	}
	for k, v := range stats.ByDocumentType {
		resp.ByDocumentType[string(k)] = v
	}
	for k, v := range stats.ByApprovalStatus {
		resp.ByApprovalStatus[string(k)] = v
	}

	api.Success(w, http.StatusOK, resp)
}
