package jobs

import (
	"context"
	"fmt"
	"log"
)

// DefaultRescoreBatchSize bounds how many chunks one rescore pass touches.
const DefaultRescoreBatchSize = 200

// Rescorer defines the interface for re-deriving chunk confidence scores
type Rescorer interface {
	RescorePass(ctx context.Context, batchSize int) (int, error)
}

// RescoreWorker periodically re-scores stored chunks from accumulated
// evidence (confirmations, age).
type RescoreWorker struct {
	rescorer  Rescorer
	batchSize int
}

// NewRescoreWorker creates a new RescoreWorker instance
func NewRescoreWorker(rescorer Rescorer, batchSize int) *RescoreWorker {
	if batchSize <= 0 {
		batchSize = DefaultRescoreBatchSize
	}
	return &RescoreWorker{
		rescorer:  rescorer,
		batchSize: batchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RescoreWorker) ProcessJobs(ctx context.Context) error {
	updated, err := w.rescorer.RescorePass(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("rescore pass failed: %w", err)
	}

	if updated > 0 {
		log.Printf("Rescore pass updated %d chunk confidence scores", updated)
	}
	return nil
}
