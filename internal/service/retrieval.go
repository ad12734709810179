package service

import (
	"context"
	"sort"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/openai"
	"github.com/norddok/norddok/internal/telemetry"
)

// oversampleFactor widens a similarity search so re-ranking by confidence has
// enough candidates to choose from.
const oversampleFactor = 3

const defaultGoldenMinConfidence = 0.8

// SearchInput describes one confidence-weighted similarity search.
// ExcludeRejected and PrioritizeApproved default to true; callers opt out
// explicitly.
type SearchInput struct {
	Query              string
	TopK               int
	Municipality       string
	DocumentType       domain.DocumentType
	IncludeRejected    bool
	NoPrioritizeByRank bool
}

// RetrievalService ranks stored chunks for drafting: similarity first, then
// confidence on top.
type RetrievalService struct {
	repo       ChunkRepositoryInterface
	embeddings EmbeddingClient
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(repo ChunkRepositoryInterface, embeddings EmbeddingClient) *RetrievalService {
	return &RetrievalService{
		repo:       repo,
		embeddings: embeddings,
	}
}

// SearchWithConfidence embeds the query, similarity-searches the store with
// the given filters, then re-ranks by confidence. The similarity pass is
// oversampled so high-confidence chunks slightly further from the query can
// still surface.
func (s *RetrievalService) SearchWithConfidence(ctx context.Context, input SearchInput) ([]*ChunkMatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.SearchWithConfidence", telemetry.SpanAttributes{
		Municipality: input.Municipality,
		DocumentType: string(input.DocumentType),
		Operation:    "search",
	})
	defer span.End()

	if input.Query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}
	if input.TopK <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "top_k must be positive")
	}
	topK := input.TopK

	embedding, err := s.embeddings.GenerateEmbedding(ctx, input.Query, openai.IntentQuery)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "embed query", err)
	}

	filters := ChunkFilters{
		Municipality:    input.Municipality,
		DocumentType:    input.DocumentType,
		ExcludeRejected: !input.IncludeRejected,
	}

	limit := topK
	if !input.NoPrioritizeByRank {
		limit = topK * oversampleFactor
		total, err := s.repo.Count(ctx)
		if err != nil {
			return nil, err
		}
		if int64(limit) > total {
			limit = int(total)
		}
		if limit < topK {
			limit = topK
		}
	}

	matches, err := s.repo.SearchByEmbedding(ctx, embedding, filters, limit)
	if err != nil {
		return nil, err
	}

	if !input.NoPrioritizeByRank {
		// Stable, so equal confidence keeps the similarity order.
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Chunk.ConfidenceScore > matches[j].Chunk.ConfidenceScore
		})
	}

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// RetrieveContext returns the ranked chunk contents as plain text, in the
// order a drafting engine should consume them.
func (s *RetrievalService) RetrieveContext(ctx context.Context, input SearchInput) ([]string, error) {
	matches, err := s.SearchWithConfidence(ctx, input)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(matches))
	for i, match := range matches {
		contents[i] = match.Chunk.Content
	}
	return contents, nil
}

// GetGoldenRecords returns approved chunks at or above the confidence floor,
// highest confidence first.
func (s *RetrievalService) GetGoldenRecords(ctx context.Context, municipality string, documentType domain.DocumentType, minConfidence *float64) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.GetGoldenRecords", telemetry.SpanAttributes{
		Municipality: municipality,
		DocumentType: string(documentType),
		Operation:    "golden_records",
	})
	defer span.End()

	floor := defaultGoldenMinConfidence
	if minConfidence != nil {
		floor = *minConfidence
	}

	return s.repo.ListFiltered(ctx, ChunkFilters{
		Municipality:   municipality,
		DocumentType:   documentType,
		ApprovalStatus: domain.ApprovalStatusApproved,
		MinConfidence:  &floor,
	})
}

// GetNegativeConstraints returns every rejected chunk matching the scope,
// i.e. the patterns a draft must avoid.
func (s *RetrievalService) GetNegativeConstraints(ctx context.Context, municipality string, documentType domain.DocumentType) ([]*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.GetNegativeConstraints", telemetry.SpanAttributes{
		Municipality: municipality,
		DocumentType: string(documentType),
		Operation:    "negative_constraints",
	})
	defer span.End()

	return s.repo.ListFiltered(ctx, ChunkFilters{
		Municipality:   municipality,
		DocumentType:   documentType,
		ApprovalStatus: domain.ApprovalStatusRejected,
	})
}
