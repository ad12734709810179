//go:build integration

package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norddok/norddok/internal/testutil"
)

func newTestArchive(ctx context.Context, t *testing.T) (*OutcomeArchive, func()) {
	rc := testutil.NewRustFSContainer(ctx, t)

	archive, err := NewOutcomeArchive(ctx, OutcomeArchiveConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "eu-north-1",
		AccessKeyID:     rc.AccessKey,
		SecretAccessKey: rc.SecretKey,
		Bucket:          "norddok-outcomes-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, archive.EnsureBucket(ctx))

	return archive, func() { _ = rc.Terminate(ctx) }
}

func TestOutcomeArchive_ArchiveAndGet(t *testing.T) {
	ctx := context.Background()
	archive, cleanup := newTestArchive(ctx, t)
	defer cleanup()

	payload := map[string]any{
		"source_reference": "sag-2026-117",
		"municipality":     "Aarhus",
	}

	require.NoError(t, archive.ArchiveOutcome(ctx, "sag-2026-117", payload))

	keys, err := archive.ListArchivedOutcomes(ctx, "sag-2026-117")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "outcomes/sag-2026-117/"))
	assert.True(t, strings.HasSuffix(keys[0], ".json"))

	data, err := archive.GetArchivedOutcome(ctx, keys[0])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Aarhus", got["municipality"])
}

func TestOutcomeArchive_RepeatedSubmissionsKeepDistinctKeys(t *testing.T) {
	ctx := context.Background()
	archive, cleanup := newTestArchive(ctx, t)
	defer cleanup()

	require.NoError(t, archive.ArchiveOutcome(ctx, "sag-a", map[string]string{"n": "1"}))
	require.NoError(t, archive.ArchiveOutcome(ctx, "sag-a", map[string]string{"n": "2"}))
	require.NoError(t, archive.ArchiveOutcome(ctx, "sag-b", map[string]string{"n": "3"}))

	keys, err := archive.ListArchivedOutcomes(ctx, "sag-a")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])

	other, err := archive.ListArchivedOutcomes(ctx, "sag-b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
