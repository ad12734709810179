package service

import (
	"context"
	"math"
	"time"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/scoring"
	"github.com/norddok/norddok/internal/telemetry"
)

// RescoreRepository is the slice of the chunk repository the rescore pass
// needs.
type RescoreRepository interface {
	ListRescorable(ctx context.Context, limit int) ([]*domain.Chunk, error)
	UpdateConfidence(ctx context.Context, id string, score float64) error
}

// RescoreService periodically re-derives confidence scores from accumulated
// evidence: recorded confirmations and chunk age. Rejected chunks are never
// rescored; their confidence stays pinned at zero.
type RescoreService struct {
	repo   RescoreRepository
	scorer *scoring.Scorer
	now    func() time.Time
}

// NewRescoreService creates a new RescoreService instance
func NewRescoreService(repo RescoreRepository, scorer *scoring.Scorer) *RescoreService {
	return &RescoreService{
		repo:   repo,
		scorer: scorer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordConfirmation notes that a stored pattern was used successfully. The
// tally feeds the next rescore pass.
func (s *RescoreService) RecordConfirmation(patternID string) {
	s.scorer.RecordConfirmation(patternID)
}

// ConfirmationCount returns the recorded confirmations for a pattern.
func (s *RescoreService) ConfirmationCount(patternID string) int {
	return s.scorer.ConfirmationCount(patternID)
}

// RescorePass re-scores up to batchSize non-rejected chunks and persists
// changed scores. Returns how many chunks were updated.
func (s *RescoreService) RescorePass(ctx context.Context, batchSize int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "RescoreService.RescorePass", telemetry.SpanAttributes{
		Operation: "rescore",
	})
	defer span.End()

	chunks, err := s.repo.ListRescorable(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, chunk := range chunks {
		if chunk.ApprovalStatus == domain.ApprovalStatusRejected {
			continue
		}

		ageDays := int(s.now().Sub(chunk.CreatedAt).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}

		confirmations := s.scorer.ConfirmationCount(chunk.ID)
		rejections := metadataInt(chunk.Metadata, "rejections")

		newScore := scoring.UpdatedConfidence(chunk.ConfidenceScore, confirmations, rejections, ageDays)
		if math.Abs(newScore-chunk.ConfidenceScore) < 1e-9 {
			continue
		}

		if err := s.repo.UpdateConfidence(ctx, chunk.ID, newScore); err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}

// metadataInt reads an integer metadata value, tolerating the float64 shape
// JSON decoding produces.
func metadataInt(metadata map[string]any, key string) int {
	if metadata == nil {
		return 0
	}
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
