package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/norddok/norddok/internal/domain"
)

func TestCorpusService_IngestCorpus_ShortDocument(t *testing.T) {
	mockStore := new(MockChunkAdder)
	svc := NewCorpusService(mockStore)

	var captured []AddChunkInput
	mockStore.On("AddChunksBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]AddChunkInput)
		}).
		Return([]*domain.Chunk{{}}, &BatchReport{Inserted: 1}, nil)

	_, report, err := svc.IngestCorpus(context.Background(), IngestCorpusInput{
		Content:         "BR18 chapter 5 covers fire safety documentation requirements.",
		SourceReference: "br18-ch5",
		DocumentType:    domain.DocumentTypeBSR,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	require.Len(t, captured, 1)
	assert.Equal(t, domain.SourceKindRegulation, captured[0].SourceKind)
	assert.Equal(t, "br18-ch5", captured[0].SourceReference)
	assert.Equal(t, 0, captured[0].Metadata["chunk_index"])
	assert.Equal(t, 1, captured[0].Metadata["chunk_total"])
}

func TestCorpusService_IngestCorpus_SplitsLongDocument(t *testing.T) {
	mockStore := new(MockChunkAdder)
	svc := NewCorpusService(mockStore)

	var captured []AddChunkInput
	mockStore.On("AddChunksBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]AddChunkInput)
		}).
		Return([]*domain.Chunk{}, &BatchReport{}, nil)

	// Well past the 1200-char chunk ceiling, with spaces to split on.
	long := strings.Repeat("fire safety documentation requirement ", 120)

	_, _, err := svc.IngestCorpus(context.Background(), IngestCorpusInput{
		Content:         long,
		SourceReference: "br18-full",
	})

	require.NoError(t, err)
	require.Greater(t, len(captured), 1)
	for i, input := range captured {
		assert.Equal(t, i, input.Metadata["chunk_index"])
		assert.Equal(t, len(captured), input.Metadata["chunk_total"])
		assert.LessOrEqual(t, len(input.Content), 1200)
	}
}

func TestCorpusService_IngestCorpus_EmptyContent(t *testing.T) {
	mockStore := new(MockChunkAdder)
	svc := NewCorpusService(mockStore)

	_, _, err := svc.IngestCorpus(context.Background(), IngestCorpusInput{
		Content:         "   ",
		SourceReference: "ref",
	})

	require.Error(t, err)
	mockStore.AssertNotCalled(t, "AddChunksBatch")
}

func TestCorpusService_IngestCorpus_MissingReference(t *testing.T) {
	mockStore := new(MockChunkAdder)
	svc := NewCorpusService(mockStore)

	_, _, err := svc.IngestCorpus(context.Background(), IngestCorpusInput{
		Content: "text",
	})

	require.Error(t, err)
	mockStore.AssertNotCalled(t, "AddChunksBatch")
}
