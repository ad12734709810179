package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/openai"
	"github.com/norddok/norddok/internal/pagination"
	"github.com/norddok/norddok/internal/telemetry"
)

// ChunkFilters narrows repository queries to exact attribute matches.
type ChunkFilters struct {
	Municipality    string
	DocumentType    domain.DocumentType
	SourceKind      domain.SourceKind
	ApprovalStatus  domain.ApprovalStatus
	ExcludeRejected bool
	MinConfidence   *float64
}

// ChunkMatch pairs a chunk with its similarity to a query embedding.
type ChunkMatch struct {
	Chunk      *domain.Chunk
	Similarity float64
}

// ChunkPageResult is one page of a cursor-based listing.
type ChunkPageResult struct {
	Items      []*domain.Chunk
	NextCursor string
	HasMore    bool
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	Insert(ctx context.Context, c *domain.Chunk) error
	InsertBatch(ctx context.Context, chunks []*domain.Chunk) error
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)
	SearchByEmbedding(ctx context.Context, embedding []float32, filters ChunkFilters, limit int) ([]*ChunkMatch, error)
	ListFiltered(ctx context.Context, filters ChunkFilters) ([]*domain.Chunk, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*ChunkPageResult, error)
	DeleteBySource(ctx context.Context, sourceReference string, kind domain.SourceKind) (int64, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*domain.StoreStats, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string, intent openai.Intent) ([]float32, error)
	GenerateEmbeddingBatch(ctx context.Context, texts []string, intent openai.Intent) ([][]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// AddChunkInput carries everything needed to store one knowledge chunk.
// Embedding is optional; the service embeds Content when it is absent.
// ConfidenceScore is optional; the service derives it when it is absent.
type AddChunkInput struct {
	Content         string
	SourceKind      domain.SourceKind
	SourceReference string
	Municipality    string
	DocumentType    domain.DocumentType
	ApprovalStatus  domain.ApprovalStatus
	ApprovalSpeed   domain.ApprovalSpeed
	Replicable      *bool
	Embedding       []float32
	ConfidenceScore *float64
	Metadata        map[string]any
}

// BatchItemError reports why one chunk of a batch was not stored.
type BatchItemError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchReport summarizes a batch insert: how many chunks went in, and why
// the remainder did not.
type BatchReport struct {
	Inserted int              `json:"inserted"`
	Failed   []BatchItemError `json:"failed,omitempty"`
}

// InitialConfidenceFunc derives a chunk's starting confidence score.
type InitialConfidenceFunc func(
	kind domain.SourceKind,
	status domain.ApprovalStatus,
	municipality string,
	replicable bool,
	speed domain.ApprovalSpeed,
) float64

// ChunkStoreService handles business logic for storing and managing chunks.
type ChunkStoreService struct {
	repo       ChunkRepositoryInterface
	embeddings EmbeddingClient
	confidence InitialConfidenceFunc
	uuidGen    UUIDGenerator
	dimensions int
}

// NewChunkStoreService creates a new ChunkStoreService instance. Dimensions is
// the embedding width the store accepts; caller-supplied embeddings of any
// other width are rejected. Zero disables the width check.
func NewChunkStoreService(
	repo ChunkRepositoryInterface,
	embeddings EmbeddingClient,
	confidence InitialConfidenceFunc,
	dimensions int,
) *ChunkStoreService {
	return &ChunkStoreService{
		repo:       repo,
		embeddings: embeddings,
		confidence: confidence,
		uuidGen:    &DefaultUUIDGenerator{},
		dimensions: dimensions,
	}
}

// NewChunkStoreServiceWithUUIDGen creates a new ChunkStoreService with custom UUID generator (for testing)
func NewChunkStoreServiceWithUUIDGen(
	repo ChunkRepositoryInterface,
	embeddings EmbeddingClient,
	confidence InitialConfidenceFunc,
	dimensions int,
	uuidGen UUIDGenerator,
) *ChunkStoreService {
	return &ChunkStoreService{
		repo:       repo,
		embeddings: embeddings,
		confidence: confidence,
		uuidGen:    uuidGen,
		dimensions: dimensions,
	}
}

// AddChunk validates, scores, embeds and stores a single chunk.
func (s *ChunkStoreService) AddChunk(ctx context.Context, input AddChunkInput) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkStoreService.AddChunk", telemetry.SpanAttributes{
		SourceReference: input.SourceReference,
		Municipality:    input.Municipality,
		Operation:       "add_chunk",
	})
	defer span.End()

	chunk, err := s.buildChunk(input)
	if err != nil {
		return nil, err
	}

	if len(chunk.Embedding) == 0 {
		embedding, err := s.embeddings.GenerateEmbedding(ctx, chunk.Content, openai.IntentStore)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "embed chunk content", err)
		}
		chunk.Embedding = embedding
	}

	if err := s.repo.Insert(ctx, chunk); err != nil {
		return nil, err
	}

	return chunk, nil
}

// AddChunksBatch stores many chunks at once. Chunks that fail validation are
// reported by input index; the remaining chunks are embedded in one gateway
// call and persisted in a single transaction.
func (s *ChunkStoreService) AddChunksBatch(ctx context.Context, inputs []AddChunkInput) ([]*domain.Chunk, *BatchReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkStoreService.AddChunksBatch", telemetry.SpanAttributes{
		Operation: "add_chunks_batch",
	})
	defer span.End()

	report := &BatchReport{}
	valid := make([]*domain.Chunk, 0, len(inputs))

	var missingTexts []string
	var missingIdx []int

	for i, input := range inputs {
		chunk, err := s.buildChunk(input)
		if err != nil {
			report.Failed = append(report.Failed, BatchItemError{Index: i, Reason: err.Error()})
			continue
		}
		if len(chunk.Embedding) == 0 {
			missingTexts = append(missingTexts, chunk.Content)
			missingIdx = append(missingIdx, len(valid))
		}
		valid = append(valid, chunk)
	}

	if len(missingTexts) > 0 {
		embeddings, err := s.embeddings.GenerateEmbeddingBatch(ctx, missingTexts, openai.IntentStore)
		if err != nil {
			return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "embed chunk batch", err)
		}
		for j, idx := range missingIdx {
			valid[idx].Embedding = embeddings[j]
		}
	}

	if len(valid) > 0 {
		if err := s.repo.InsertBatch(ctx, valid); err != nil {
			return nil, nil, err
		}
	}

	report.Inserted = len(valid)
	return valid, report, nil
}

// GetChunk fetches a single chunk by ID.
func (s *ChunkStoreService) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	return s.repo.GetByID(ctx, id)
}

// ListChunksInput controls cursor-based listing.
type ListChunksInput struct {
	Cursor string
	Limit  int
}

// ListChunks pages through the store newest-first.
func (s *ChunkStoreService) ListChunks(ctx context.Context, input ListChunksInput) (*ChunkPageResult, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.repo.ListWithCursor(ctx, cursor, input.Limit)
}

// DeleteBySource removes every chunk recorded under a source reference and
// kind, returning the number removed. Deleting an unknown source is not an
// error; the count is simply zero.
func (s *ChunkStoreService) DeleteBySource(ctx context.Context, sourceReference string, kind domain.SourceKind) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkStoreService.DeleteBySource", telemetry.SpanAttributes{
		SourceReference: sourceReference,
		Operation:       "delete_by_source",
	})
	defer span.End()

	if sourceReference == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "source reference is required")
	}

	return s.repo.DeleteBySource(ctx, sourceReference, kind)
}

// Clear removes every chunk from the store. Idempotent.
func (s *ChunkStoreService) Clear(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ChunkStoreService.Clear", telemetry.SpanAttributes{
		Operation: "clear",
	})
	defer span.End()

	return s.repo.Clear(ctx)
}

// Stats aggregates store-wide counts for reporting.
func (s *ChunkStoreService) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return s.repo.Stats(ctx)
}

// Count returns the total number of stored chunks.
func (s *ChunkStoreService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// buildChunk assembles and validates a domain chunk from caller input,
// deriving the confidence score when the caller did not pin one.
func (s *ChunkStoreService) buildChunk(input AddChunkInput) (*domain.Chunk, error) {
	status := input.ApprovalStatus
	if status == "" {
		status = domain.ApprovalStatusUnknown
	}

	replicable := true
	if input.Replicable != nil {
		replicable = *input.Replicable
	}

	if len(input.Embedding) > 0 && s.dimensions > 0 && len(input.Embedding) != s.dimensions {
		return nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("embedding has %d dimensions, store expects %d", len(input.Embedding), s.dimensions))
	}

	chunk := domain.NewChunk(
		s.uuidGen.NewString(),
		input.Content,
		input.SourceKind,
		input.SourceReference,
		time.Now().UTC(),
	)
	chunk.Municipality = input.Municipality
	chunk.DocumentType = input.DocumentType
	chunk.ApprovalStatus = status
	chunk.Embedding = input.Embedding

	if input.Metadata != nil {
		chunk.Metadata = input.Metadata
	}

	switch {
	case status == domain.ApprovalStatusRejected:
		// Rejected content never carries usable confidence.
		chunk.ConfidenceScore = 0.0
	case input.ConfidenceScore != nil:
		chunk.ConfidenceScore = *input.ConfidenceScore
	default:
		chunk.ConfidenceScore = s.confidence(
			input.SourceKind, status, input.Municipality, replicable, input.ApprovalSpeed)
	}

	if err := domain.ValidateChunk(chunk); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chunk", err)
	}

	return chunk, nil
}
