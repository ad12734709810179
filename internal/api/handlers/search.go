package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/service"
)

type RetrievalInterface interface {
	SearchWithConfidence(ctx context.Context, input service.SearchInput) ([]*service.ChunkMatch, error)
	RetrieveContext(ctx context.Context, input service.SearchInput) ([]string, error)
	GetGoldenRecords(ctx context.Context, municipality string, documentType domain.DocumentType, minConfidence *float64) ([]*domain.Chunk, error)
	GetNegativeConstraints(ctx context.Context, municipality string, documentType domain.DocumentType) ([]*domain.Chunk, error)
}

type SearchHandler struct {
	svc RetrievalInterface
}

func NewSearchHandler(svc RetrievalInterface) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// defaultTopK applies when a search request omits top_k.
const defaultTopK = 5

type SearchRequest struct {
	Query              string `json:"query"`
	TopK               int    `json:"top_k,omitempty"`
	Municipality       string `json:"municipality,omitempty"`
	DocumentType       string `json:"document_type,omitempty"`
	IncludeRejected    bool   `json:"include_rejected,omitempty"`
	NoPrioritizeByRank bool   `json:"no_prioritize_by_rank,omitempty"`
}

type SearchMatchResponse struct {
	Chunk      *ChunkResponse `json:"chunk"`
	Similarity float64        `json:"similarity"`
}

type SearchResponse struct {
	Matches []*SearchMatchResponse `json:"matches"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	matches, err := h.svc.SearchWithConfidence(r.Context(), service.SearchInput{
		Query:              req.Query,
		TopK:               req.TopK,
		Municipality:       req.Municipality,
		DocumentType:       domain.DocumentType(req.DocumentType),
		IncludeRejected:    req.IncludeRejected,
		NoPrioritizeByRank: req.NoPrioritizeByRank,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchMatchResponse, len(matches))
	for i, m := range matches {
		responses[i] = &SearchMatchResponse{
			Chunk:      chunkToResponse(m.Chunk),
			Similarity: m.Similarity,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Matches: responses})
}

type ContextResponse struct {
	Contents []string `json:"contents"`
}

func (h *SearchHandler) Context(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	contents, err := h.svc.RetrieveContext(r.Context(), service.SearchInput{
		Query:              req.Query,
		TopK:               req.TopK,
		Municipality:       req.Municipality,
		DocumentType:       domain.DocumentType(req.DocumentType),
		IncludeRejected:    req.IncludeRejected,
		NoPrioritizeByRank: req.NoPrioritizeByRank,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if contents == nil {
		contents = []string{}
	}
	api.Success(w, http.StatusOK, ContextResponse{Contents: contents})
}

type ChunkSetResponse struct {
	Items []*ChunkResponse `json:"items"`
}

func (h *SearchHandler) GoldenRecords(w http.ResponseWriter, r *http.Request) {
	municipality := r.URL.Query().Get("municipality")
	documentType := domain.DocumentType(r.URL.Query().Get("document_type"))

	var minConfidence *float64
	if raw := r.URL.Query().Get("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			api.Error(w, http.StatusBadRequest, "min_confidence must be a number in [0, 1]")
			return
		}
		minConfidence = &parsed
	}

	records, err := h.svc.GetGoldenRecords(r.Context(), municipality, documentType, minConfidence)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkSetResponse(records))
}

func (h *SearchHandler) NegativeConstraints(w http.ResponseWriter, r *http.Request) {
	municipality := r.URL.Query().Get("municipality")
	documentType := domain.DocumentType(r.URL.Query().Get("document_type"))

	constraints, err := h.svc.GetNegativeConstraints(r.Context(), municipality, documentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkSetResponse(constraints))
}

func chunkSetResponse(chunks []*domain.Chunk) ChunkSetResponse {
	items := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkToResponse(c)
	}
	return ChunkSetResponse{Items: items}
}
