package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/openai"
)

func approvedChunk(id string, confidence float64) *domain.Chunk {
	return &domain.Chunk{
		ID:              id,
		Content:         "content " + id,
		SourceKind:      domain.SourceKindFeedback,
		SourceReference: "ref",
		ConfidenceScore: confidence,
		ApprovalStatus:  domain.ApprovalStatusApproved,
	}
}

func TestRetrievalService_SearchWithConfidence_RanksByConfidence(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	queryEmbedding := []float32{0.1, 0.2}
	mockEmbed.On("GenerateEmbedding", mock.Anything, "fire safety", openai.IntentQuery).
		Return(queryEmbedding, nil)

	// Similarity order: B before A. Confidence re-rank must put A first.
	candidates := []*ChunkMatch{
		{Chunk: approvedChunk("B", 0.6), Similarity: 0.99},
		{Chunk: approvedChunk("A", 0.9), Similarity: 0.95},
	}
	mockRepo.On("Count", mock.Anything).Return(int64(3), nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, queryEmbedding, mock.MatchedBy(func(f ChunkFilters) bool {
		return f.ExcludeRejected
	}), 3).Return(candidates, nil)

	matches, err := svc.SearchWithConfidence(context.Background(), SearchInput{
		Query: "fire safety",
		TopK:  2,
	})

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "A", matches[0].Chunk.ID)
	assert.Equal(t, "B", matches[1].Chunk.ID)
	mockRepo.AssertExpectations(t)
}

func TestRetrievalService_SearchWithConfidence_OversamplesAndTruncates(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return([]float32{0.1}, nil)
	mockRepo.On("Count", mock.Anything).Return(int64(100), nil)

	candidates := []*ChunkMatch{
		{Chunk: approvedChunk("a", 0.5), Similarity: 0.9},
		{Chunk: approvedChunk("b", 0.8), Similarity: 0.8},
		{Chunk: approvedChunk("c", 0.7), Similarity: 0.7},
		{Chunk: approvedChunk("d", 0.9), Similarity: 0.6},
	}
	// topK=2 with oversampling requests 6 candidates.
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, 6).
		Return(candidates, nil)

	matches, err := svc.SearchWithConfidence(context.Background(), SearchInput{Query: "q", TopK: 2})

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "d", matches[0].Chunk.ID)
	assert.Equal(t, "b", matches[1].Chunk.ID)
}

func TestRetrievalService_SearchWithConfidence_OversampleCappedByStoreSize(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return([]float32{0.1}, nil)
	mockRepo.On("Count", mock.Anything).Return(int64(4), nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, 4).
		Return([]*ChunkMatch{}, nil)

	_, err := svc.SearchWithConfidence(context.Background(), SearchInput{Query: "q", TopK: 2})

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestRetrievalService_SearchWithConfidence_NoPrioritizeKeepsSimilarityOrder(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return([]float32{0.1}, nil)

	candidates := []*ChunkMatch{
		{Chunk: approvedChunk("low", 0.2), Similarity: 0.99},
		{Chunk: approvedChunk("high", 0.9), Similarity: 0.50},
	}
	// No oversampling: exactly topK requested, no Count call.
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, 2).
		Return(candidates, nil)

	matches, err := svc.SearchWithConfidence(context.Background(), SearchInput{
		Query:              "q",
		TopK:               2,
		NoPrioritizeByRank: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "low", matches[0].Chunk.ID)
	assert.Equal(t, "high", matches[1].Chunk.ID)
	mockRepo.AssertNotCalled(t, "Count")
}

func TestRetrievalService_SearchWithConfidence_FiltersPushedDown(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return([]float32{0.1}, nil)
	mockRepo.On("Count", mock.Anything).Return(int64(10), nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, ChunkFilters{
		Municipality:    "Aarhus",
		DocumentType:    domain.DocumentTypeBSR,
		ExcludeRejected: true,
	}, mock.Anything).Return([]*ChunkMatch{}, nil)

	_, err := svc.SearchWithConfidence(context.Background(), SearchInput{
		Query:        "q",
		TopK:         3,
		Municipality: "Aarhus",
		DocumentType: domain.DocumentTypeBSR,
	})

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestRetrievalService_SearchWithConfidence_EmptyQuery(t *testing.T) {
	svc := NewRetrievalService(new(MockChunkRepository), new(MockEmbeddingClient))

	_, err := svc.SearchWithConfidence(context.Background(), SearchInput{Query: "", TopK: 5})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestRetrievalService_SearchWithConfidence_NonPositiveTopK(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	for _, topK := range []int{0, -1} {
		_, err := svc.SearchWithConfidence(context.Background(), SearchInput{Query: "q", TopK: topK})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	}
	mockEmbed.AssertNotCalled(t, "GenerateEmbedding")
	mockRepo.AssertNotCalled(t, "SearchByEmbedding")
}

func TestRetrievalService_SearchWithConfidence_EmbedFailure(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return(nil, errors.New("gateway down"))

	_, err := svc.SearchWithConfidence(context.Background(), SearchInput{Query: "q", TopK: 2})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeCollaborator, domainErr.Code)
	mockRepo.AssertNotCalled(t, "SearchByEmbedding")
}

func TestRetrievalService_RetrieveContext(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	mockEmbed := new(MockEmbeddingClient)
	svc := NewRetrievalService(mockRepo, mockEmbed)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "q", openai.IntentQuery).
		Return([]float32{0.1}, nil)
	mockRepo.On("Count", mock.Anything).Return(int64(2), nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*ChunkMatch{
			{Chunk: approvedChunk("A", 0.9), Similarity: 0.9},
			{Chunk: approvedChunk("B", 0.6), Similarity: 0.8},
		}, nil)

	contents, err := svc.RetrieveContext(context.Background(), SearchInput{Query: "q", TopK: 2})

	require.NoError(t, err)
	assert.Equal(t, []string{"content A", "content B"}, contents)
}

func TestRetrievalService_GetGoldenRecords(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	svc := NewRetrievalService(mockRepo, new(MockEmbeddingClient))

	mockRepo.On("ListFiltered", mock.Anything, mock.MatchedBy(func(f ChunkFilters) bool {
		return f.ApprovalStatus == domain.ApprovalStatusApproved &&
			f.MinConfidence != nil && *f.MinConfidence == 0.8 &&
			f.Municipality == "Aarhus"
	})).Return([]*domain.Chunk{approvedChunk("g1", 0.92)}, nil)

	records, err := svc.GetGoldenRecords(context.Background(), "Aarhus", "", nil)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "g1", records[0].ID)
}

func TestRetrievalService_GetGoldenRecords_CustomFloor(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	svc := NewRetrievalService(mockRepo, new(MockEmbeddingClient))

	floor := 0.6
	mockRepo.On("ListFiltered", mock.Anything, mock.MatchedBy(func(f ChunkFilters) bool {
		return f.MinConfidence != nil && *f.MinConfidence == 0.6
	})).Return([]*domain.Chunk{}, nil)

	_, err := svc.GetGoldenRecords(context.Background(), "", "", &floor)

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestRetrievalService_GetNegativeConstraints(t *testing.T) {
	mockRepo := new(MockChunkRepository)
	svc := NewRetrievalService(mockRepo, new(MockEmbeddingClient))

	rejected := &domain.Chunk{ID: "n1", ApprovalStatus: domain.ApprovalStatusRejected}
	mockRepo.On("ListFiltered", mock.Anything, ChunkFilters{
		Municipality:   "Odense",
		ApprovalStatus: domain.ApprovalStatusRejected,
	}).Return([]*domain.Chunk{rejected}, nil)

	constraints, err := svc.GetNegativeConstraints(context.Background(), "Odense", "")

	require.NoError(t, err)
	require.Len(t, constraints, 1)
	assert.Equal(t, "n1", constraints[0].ID)
}
