package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/pagination"
	"github.com/norddok/norddok/internal/service"
)

// dbtx abstracts over a pgx pool and a transaction so repositories can run
// inside either.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository persists knowledge chunks and their embeddings.
type ChunkRepository struct {
	db         dbtx
	pool       *pgxpool.Pool
	dimensions int
}

func NewChunkRepository(pool *pgxpool.Pool, dimensions int) *ChunkRepository {
	return &ChunkRepository{db: pool, pool: pool, dimensions: dimensions}
}

func newChunkRepositoryWithTx(tx pgx.Tx, dimensions int) *ChunkRepository {
	return &ChunkRepository{db: tx, dimensions: dimensions}
}

const chunkColumns = `id, content, embedding, source_kind, source_reference,
	municipality, document_type, confidence_score, approval_status, metadata, created_at`

// Insert stores a single chunk.
func (r *ChunkRepository) Insert(ctx context.Context, c *domain.Chunk) error {
	metadataJSON, err := marshalMetadata(c.Metadata)
	if err != nil {
		return err
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO chunks
			(id, content, embedding, source_kind, source_reference, municipality, document_type, confidence_score, approval_status, metadata, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID,
		c.Content,
		pgvector.NewVector(c.Embedding),
		c.SourceKind,
		c.SourceReference,
		nullableString(c.Municipality),
		nullableString(string(c.DocumentType)),
		c.ConfidenceScore,
		c.ApprovalStatus,
		metadataJSON,
		createdAt,
	)
	return err
}

// InsertBatch stores all chunks in one transaction so readers never observe a
// half-applied batch.
func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if r.pool == nil {
		return errors.New("batch insert requires a pool-backed repository")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	txRepo := newChunkRepositoryWithTx(tx, r.dimensions)
	for _, c := range chunks {
		if err := txRepo.Insert(ctx, c); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a single chunk.
func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = $1`, id)

	c, err := r.scanChunk(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return c, nil
}

// SearchByEmbedding runs a cosine-similarity search with exact-match filters
// pushed into the SQL predicate. Results come back similarity-descending.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, filters service.ChunkFilters, limit int) ([]*service.ChunkMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + chunkColumns + `,
		1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM chunks
		WHERE TRUE`
	args := []any{pgvector.NewVector(embedding)}

	query, args = appendChunkFilters(query, args, filters)

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY score DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.ChunkMatch
	for rows.Next() {
		var match service.ChunkMatch
		c, err := r.scanChunkRow(rows, &match.Similarity)
		if err != nil {
			return nil, err
		}
		match.Chunk = c
		results = append(results, &match)
	}
	return results, rows.Err()
}

// ListFiltered returns chunks matching the filters ordered by confidence
// descending. Used for the golden-record and negative-constraint views.
func (r *ChunkRepository) ListFiltered(ctx context.Context, filters service.ChunkFilters) ([]*domain.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE TRUE`
	args := []any{}

	query, args = appendChunkFilters(query, args, filters)
	query += " ORDER BY confidence_score DESC, created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanChunkRows(rows)
}

// ListWithCursor pages through the store newest-first.
func (r *ChunkRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.ChunkPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+chunkColumns+`
			 FROM chunks
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+chunkColumns+`
			 FROM chunks
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := r.scanChunkRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(items, limit,
			func(c *domain.Chunk) string { return c.ID },
			func(c *domain.Chunk) time.Time { return c.CreatedAt },
		)
	}

	return &service.ChunkPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// DeleteBySource removes all chunks recorded for a source reference and kind,
// returning how many were removed.
func (r *ChunkRepository) DeleteBySource(ctx context.Context, sourceReference string, kind domain.SourceKind) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE source_reference = $1 AND source_kind = $2`,
		sourceReference, kind,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// Clear removes every chunk. Idempotent.
func (r *ChunkRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks`)
	return err
}

// Count returns the total number of stored chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// UpdateConfidence sets a chunk's confidence score.
func (r *ChunkRepository) UpdateConfidence(ctx context.Context, id string, score float64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chunks SET confidence_score = $1 WHERE id = $2`,
		score, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// ListRescorable returns non-rejected chunks oldest-first for the background
// rescore pass.
func (r *ChunkRepository) ListRescorable(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM chunks
		 WHERE approval_status <> $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.ApprovalStatusRejected, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanChunkRows(rows)
}

// Stats aggregates store-wide counts for reporting.
func (r *ChunkRepository) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{
		BySourceKind:     map[domain.SourceKind]int64{},
		ByMunicipality:   map[string]int64{},
		ByDocumentType:   map[domain.DocumentType]int64{},
		ByApprovalStatus: map[domain.ApprovalStatus]int64{},
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE confidence_score > 0.8),
			COUNT(*) FILTER (WHERE confidence_score >= 0.5 AND confidence_score <= 0.8),
			COUNT(*) FILTER (WHERE confidence_score < 0.5)
		 FROM chunks`,
	).Scan(&stats.TotalChunks, &stats.HighConfidence, &stats.MediumConfidence, &stats.LowConfidence)
	if err != nil {
		return nil, err
	}

	bySourceKind, err := r.groupCount(ctx, `SELECT source_kind, COUNT(*) FROM chunks GROUP BY source_kind`)
	if err != nil {
		return nil, err
	}
	for key, count := range bySourceKind {
		stats.BySourceKind[domain.SourceKind(key)] = count
	}

	stats.ByMunicipality, err = r.groupCount(ctx,
		`SELECT COALESCE(municipality, 'general'), COUNT(*) FROM chunks GROUP BY municipality`)
	if err != nil {
		return nil, err
	}

	byDocumentType, err := r.groupCount(ctx,
		`SELECT COALESCE(document_type, 'all'), COUNT(*) FROM chunks GROUP BY document_type`)
	if err != nil {
		return nil, err
	}
	for key, count := range byDocumentType {
		stats.ByDocumentType[domain.DocumentType(key)] = count
	}

	byApprovalStatus, err := r.groupCount(ctx, `SELECT approval_status, COUNT(*) FROM chunks GROUP BY approval_status`)
	if err != nil {
		return nil, err
	}
	for key, count := range byApprovalStatus {
		stats.ByApprovalStatus[domain.ApprovalStatus(key)] = count
	}

	return stats, nil
}

func (r *ChunkRepository) groupCount(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func appendChunkFilters(query string, args []any, filters service.ChunkFilters) (string, []any) {
	if filters.Municipality != "" {
		args = append(args, filters.Municipality)
		query += fmt.Sprintf(" AND municipality = $%d", len(args))
	}
	if filters.DocumentType != "" {
		args = append(args, filters.DocumentType)
		query += fmt.Sprintf(" AND document_type = $%d", len(args))
	}
	if filters.SourceKind != "" {
		args = append(args, filters.SourceKind)
		query += fmt.Sprintf(" AND source_kind = $%d", len(args))
	}
	if filters.ApprovalStatus != "" {
		args = append(args, filters.ApprovalStatus)
		query += fmt.Sprintf(" AND approval_status = $%d", len(args))
	}
	if filters.ExcludeRejected {
		args = append(args, domain.ApprovalStatusRejected)
		query += fmt.Sprintf(" AND approval_status <> $%d", len(args))
	}
	if filters.MinConfidence != nil {
		args = append(args, *filters.MinConfidence)
		query += fmt.Sprintf(" AND confidence_score >= $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ChunkRepository) scanChunk(row rowScanner) (*domain.Chunk, error) {
	return r.scanInto(row, nil)
}

func (r *ChunkRepository) scanChunkRow(row rowScanner, score *float64) (*domain.Chunk, error) {
	return r.scanInto(row, score)
}

func (r *ChunkRepository) scanInto(row rowScanner, score *float64) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding pgvector.Vector
	var municipality, documentType *string
	var metadataJSON []byte

	dest := []any{
		&c.ID, &c.Content, &embedding, &c.SourceKind, &c.SourceReference,
		&municipality, &documentType, &c.ConfidenceScore, &c.ApprovalStatus,
		&metadataJSON, &c.CreatedAt,
	}
	if score != nil {
		dest = append(dest, score)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	c.Embedding = embedding.Slice()
	if municipality != nil {
		c.Municipality = *municipality
	}
	if documentType != nil {
		c.DocumentType = domain.DocumentType(*documentType)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk %s metadata: %w", c.ID, err)
		}
	}

	// Persisted state must honor the store invariants; violations mean the
	// row was corrupted outside this repository.
	if c.ApprovalStatus == domain.ApprovalStatusRejected && c.ConfidenceScore != 0.0 {
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeCorruption,
			fmt.Sprintf("chunk %s", c.ID),
			domain.ErrCorruptRejectedChunk,
		)
	}
	if r.dimensions > 0 && len(c.Embedding) > 0 && len(c.Embedding) != r.dimensions {
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeCorruption,
			fmt.Sprintf("chunk %s has %d-dimensional embedding, expected %d", c.ID, len(c.Embedding), r.dimensions),
			domain.ErrCorruptEmbedding,
		)
	}

	return &c, nil
}

func (r *ChunkRepository) scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	var results []*domain.Chunk
	for rows.Next() {
		c, err := r.scanChunk(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode chunk metadata: %w", err)
	}
	return metadataJSON, nil
}
