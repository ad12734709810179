package client

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// StatsView mirrors the stats payload returned by the API.
type StatsView struct {
	TotalChunks      int64            `json:"total_chunks"`
	BySourceKind     map[string]int64 `json:"by_source_kind"`
	ByMunicipality   map[string]int64 `json:"by_municipality"`
	ByDocumentType   map[string]int64 `json:"by_document_type"`
	ByApprovalStatus map[string]int64 `json:"by_approval_status"`
	HighConfidence   int64            `json:"high_confidence"`
	MediumConfidence int64            `json:"medium_confidence"`
	LowConfidence    int64            `json:"low_confidence"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/stats")
			if err != nil {
				return fmt.Errorf("stats retrieval failed: %w", err)
			}

			var stats StatsView
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(stats, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Total chunks: %d\n", stats.TotalChunks)
			fmt.Printf("Confidence:   high %d / medium %d / low %d\n",
				stats.HighConfidence, stats.MediumConfidence, stats.LowConfidence)
			printCountMap("By source kind", stats.BySourceKind)
			printCountMap("By municipality", stats.ByMunicipality)
			printCountMap("By document type", stats.ByDocumentType)
			printCountMap("By approval status", stats.ByApprovalStatus)
			return nil
		},
	}
}

func printCountMap(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}
}
