package service

import (
	"context"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/telemetry"
)

// IngestCorpusInput describes a long source document to split and store.
type IngestCorpusInput struct {
	Content         string
	SourceKind      domain.SourceKind
	SourceReference string
	Municipality    string
	DocumentType    domain.DocumentType
	ApprovalStatus  domain.ApprovalStatus
}

// CorpusService splits long source documents (regulation texts, approved
// examples) into overlapping chunks and stores them as a batch.
type CorpusService struct {
	store    ChunkAdder
	chunkCfg ChunkConfig
}

// NewCorpusService creates a new CorpusService instance
func NewCorpusService(store ChunkAdder) *CorpusService {
	return &CorpusService{
		store:    store,
		chunkCfg: DefaultChunkConfig(),
	}
}

// IngestCorpus chunks the document and batch-inserts the pieces. Each piece
// carries its position in the document as metadata.
func (s *CorpusService) IngestCorpus(ctx context.Context, input IngestCorpusInput) ([]*domain.Chunk, *BatchReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "CorpusService.IngestCorpus", telemetry.SpanAttributes{
		SourceReference: input.SourceReference,
		Municipality:    input.Municipality,
		DocumentType:    string(input.DocumentType),
		Operation:       "ingest_corpus",
	})
	defer span.End()

	if input.SourceReference == "" {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "source reference is required")
	}

	kind := input.SourceKind
	if kind == "" {
		kind = domain.SourceKindRegulation
	}

	pieces := chunkText(input.Content, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "document content is empty")
	}

	inputs := make([]AddChunkInput, len(pieces))
	for i, piece := range pieces {
		inputs[i] = AddChunkInput{
			Content:         piece,
			SourceKind:      kind,
			SourceReference: input.SourceReference,
			Municipality:    input.Municipality,
			DocumentType:    input.DocumentType,
			ApprovalStatus:  input.ApprovalStatus,
			Metadata: map[string]any{
				"chunk_index":  i,
				"chunk_total":  len(pieces),
				"ingest_route": "corpus",
			},
		}
	}

	return s.store.AddChunksBatch(ctx, inputs)
}
