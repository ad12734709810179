//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkPayload struct {
	ID                 string         `json:"id"`
	Content            string         `json:"content"`
	SourceKind         string         `json:"source_kind"`
	SourceReference    string         `json:"source_reference"`
	Municipality       string         `json:"municipality,omitempty"`
	DocumentType       string         `json:"document_type,omitempty"`
	ConfidenceScore    float64        `json:"confidence_score"`
	ConfidenceCategory string         `json:"confidence_category"`
	ApprovalStatus     string         `json:"approval_status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

func TestE2E_KnowledgeLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health check requires no auth", func(t *testing.T) {
		resp, err := env.Get("/health", "")
		require.NoError(t, err)

		var health map[string]string
		require.NoError(t, json.Unmarshal(resp.Data, &health))
		assert.Equal(t, "ok", health["status"])
	})

	t.Run("protected routes reject missing token", func(t *testing.T) {
		_, err := env.Get("/stats", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	var chunkID string

	t.Run("add chunk computes initial confidence", func(t *testing.T) {
		resp, err := env.Post("/chunks", map[string]any{
			"content":          "Flugtveje skal have en fri bredde på mindst 1,3 m.",
			"source_kind":      "feedback",
			"source_reference": "sag-2026-117",
			"municipality":     "Aarhus",
			"document_type":    "BSR",
			"approval_status":  "approved",
			"approval_speed":   "fast",
		}, testAuthToken)
		require.NoError(t, err)

		var chunk chunkPayload
		require.NoError(t, json.Unmarshal(resp.Data, &chunk))
		chunkID = chunk.ID

		assert.NotEmpty(t, chunk.ID)
		// feedback base 0.75, municipality +0.10, fast speed +0.10
		assert.InDelta(t, 0.95, chunk.ConfidenceScore, 1e-9)
		assert.Equal(t, "very_high", chunk.ConfidenceCategory)
	})

	t.Run("get chunk round-trips", func(t *testing.T) {
		resp, err := env.Get("/chunks/"+chunkID, testAuthToken)
		require.NoError(t, err)

		var chunk chunkPayload
		require.NoError(t, json.Unmarshal(resp.Data, &chunk))
		assert.Equal(t, chunkID, chunk.ID)
		assert.Equal(t, "Aarhus", chunk.Municipality)
	})

	t.Run("search finds the chunk by similar wording", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]any{
			"query": "fri bredde flugtveje",
			"top_k": 5,
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Matches []struct {
				Chunk      chunkPayload `json:"chunk"`
				Similarity float64      `json:"similarity"`
			} `json:"matches"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Matches)
		assert.Equal(t, chunkID, result.Matches[0].Chunk.ID)
		assert.Greater(t, result.Matches[0].Similarity, 0.5)
	})

	t.Run("stats reflect the store", func(t *testing.T) {
		resp, err := env.Get("/stats", testAuthToken)
		require.NoError(t, err)

		var stats struct {
			TotalChunks    int64            `json:"total_chunks"`
			HighConfidence int64            `json:"high_confidence"`
			BySourceKind   map[string]int64 `json:"by_source_kind"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Equal(t, int64(1), stats.TotalChunks)
		assert.Equal(t, int64(1), stats.HighConfidence)
		assert.Equal(t, int64(1), stats.BySourceKind["feedback"])
	})
}

func TestE2E_OutcomeLearning(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("approval outcome stores golden patterns", func(t *testing.T) {
		resp, err := env.Post("/outcomes/approval", map[string]any{
			"source_reference": "sag-2026-204",
			"municipality":     "Aalborg",
			"document_type":    "BSR",
			"approval_speed":   "fast",
			"golden_patterns": []string{
				"Brandsektionering pr. 600 m2 med BS-60 vægge",
			},
			"successful_elements": []map[string]any{
				{"aspect": "redningsåbninger", "reason": "dimensioneret efter BR18 § 55", "replicable": true},
			},
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Learned []chunkPayload `json:"learned"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.Len(t, result.Learned, 2)

		for _, c := range result.Learned {
			assert.Equal(t, "approved", c.ApprovalStatus)
			assert.Equal(t, "Aalborg", c.Municipality)
			assert.GreaterOrEqual(t, c.ConfidenceScore, 0.90)
		}
	})

	t.Run("approval payload is archived", func(t *testing.T) {
		keys, err := env.Archive.ListArchivedOutcomes(env.Ctx, "sag-2026-204")
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("rejection outcome stores zero-confidence constraints", func(t *testing.T) {
		resp, err := env.Post("/outcomes/rejection", map[string]any{
			"source_reference": "sag-2026-205",
			"municipality":     "Aalborg",
			"negative_constraints": []string{
				"Fælles flugtvej gennem kælder uden selvstændig brandsektion",
			},
			"rejection_reasons": []map[string]any{
				{"specific_issue": "flugtvejsbredde under 1,3 m", "severity": "critical"},
			},
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Learned []chunkPayload `json:"learned"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Learned)

		for _, c := range result.Learned {
			assert.Equal(t, "rejected", c.ApprovalStatus)
			assert.Zero(t, c.ConfidenceScore)
		}
	})

	t.Run("negative constraints view returns the rejection", func(t *testing.T) {
		resp, err := env.Get("/negative-constraints?municipality=Aalborg", testAuthToken)
		require.NoError(t, err)

		var result struct {
			Items []chunkPayload `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Items)
		for _, c := range result.Items {
			assert.Equal(t, "rejected", c.ApprovalStatus)
		}
	})

	t.Run("golden records view returns the approval patterns", func(t *testing.T) {
		resp, err := env.Get("/golden-records?municipality=Aalborg&min_confidence=0.85", testAuthToken)
		require.NoError(t, err)

		var result struct {
			Items []chunkPayload `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Len(t, result.Items, 2)
	})

	t.Run("insight extraction stores derived chunks", func(t *testing.T) {
		resp, err := env.Post("/insights", map[string]any{
			"municipality": "Aalborg",
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Insights []struct {
				ID                 string  `json:"id"`
				Municipality       string  `json:"municipality"`
				PatternDescription string  `json:"pattern_description"`
				ConfidenceScore    float64 `json:"confidence_score"`
			} `json:"insights"`
			Report struct {
				Inserted int `json:"inserted"`
			} `json:"report"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Insights)
		assert.Equal(t, "Aalborg", result.Insights[0].Municipality)
		assert.NotEmpty(t, result.Insights[0].PatternDescription)
		assert.Equal(t, len(result.Insights), result.Report.Inserted)

		statsResp, err := env.Get("/stats", testAuthToken)
		require.NoError(t, err)
		var stats struct {
			BySourceKind map[string]int64 `json:"by_source_kind"`
		}
		require.NoError(t, json.Unmarshal(statsResp.Data, &stats))
		assert.Equal(t, int64(len(result.Insights)), stats.BySourceKind["derived_insight"])
	})

	t.Run("default search excludes rejected chunks", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]any{
			"query": "flugtvej kælder brandsektion",
			"top_k": 10,
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Matches []struct {
				Chunk chunkPayload `json:"chunk"`
			} `json:"matches"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		for _, m := range result.Matches {
			assert.NotEqual(t, "rejected", m.Chunk.ApprovalStatus)
		}
	})
}

func TestE2E_CorpusIngestAndContext(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	document := strings.Repeat("Brandmodstandsevnen for bærende konstruktioner skal dokumenteres. ", 30) +
		"\n\n" +
		strings.Repeat("Redningsåbninger skal kunne betjenes uden brug af værktøj. ", 30)

	t.Run("corpus ingest splits into chunks", func(t *testing.T) {
		resp, err := env.Post("/corpus", map[string]any{
			"content":          document,
			"source_reference": "BR18-kap5",
			"document_type":    "BSR",
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Chunks []chunkPayload `json:"chunks"`
			Report struct {
				Inserted int `json:"inserted"`
			} `json:"report"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Greater(t, result.Report.Inserted, 1)
		assert.Len(t, result.Chunks, result.Report.Inserted)
	})

	t.Run("context endpoint returns text blocks", func(t *testing.T) {
		resp, err := env.Post("/search/context", map[string]any{
			"query": "redningsåbninger betjening",
			"top_k": 3,
		}, testAuthToken)
		require.NoError(t, err)

		var result struct {
			Contents []string `json:"contents"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Contents)
		assert.Contains(t, strings.Join(result.Contents, " "), "Redningsåbninger")
	})

	t.Run("delete by source removes the corpus", func(t *testing.T) {
		resp, err := env.Delete("/chunks/source?source_reference=BR18-kap5&source_kind=regulation", testAuthToken)
		require.NoError(t, err)

		var result struct {
			Deleted int64 `json:"deleted"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Greater(t, result.Deleted, int64(1))
	})
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	t.Run("add and search through the CLI", func(t *testing.T) {
		out, err := env.RunNorddok("add",
			"Sprinkling kan erstatte brandsektionering ved lagerhaller over 2000 m2",
			"--reference", "sag-2026-300",
			"--kind", "feedback",
			"--municipality", "Esbjerg",
			"--status", "approved",
		)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Chunk added")

		out, err = env.RunNorddok("search", "sprinkling lagerhaller", "--top-k", "5")
		require.NoError(t, err, out)
		assert.Contains(t, out, "sag-2026-300")
	})

	t.Run("stats through the CLI", func(t *testing.T) {
		out, err := env.RunNorddok("stats", "--output")
		require.NoError(t, err, out)

		var stats struct {
			TotalChunks int64 `json:"total_chunks"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &stats))
		assert.Equal(t, int64(1), stats.TotalChunks)
	})
}
