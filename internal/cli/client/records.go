package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// GoldenRecordsCmd creates the golden-records command.
func GoldenRecordsCmd() *cobra.Command {
	var (
		municipality  string
		documentType  string
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "golden-records",
		Short: "List high-confidence approved patterns",
		Long:  "Lists approved chunks at or above the confidence floor, for reuse in new documents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if municipality != "" {
				query.Set("municipality", municipality)
			}
			if documentType != "" {
				query.Set("document_type", documentType)
			}
			if cmd.Flags().Changed("min-confidence") {
				query.Set("min_confidence", strconv.FormatFloat(minConfidence, 'f', -1, 64))
			}

			path := "/golden-records"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("golden records retrieval failed: %w", err)
			}

			return printChunkSet(resp.Data, outputJSON, "No golden records found.")
		},
	}

	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Filter by municipality")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Filter by document type")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.85, "Confidence floor in [0, 1]")

	return cmd
}

// NegativeConstraintsCmd creates the negative-constraints command.
func NegativeConstraintsCmd() *cobra.Command {
	var (
		municipality string
		documentType string
	)

	cmd := &cobra.Command{
		Use:   "negative-constraints",
		Short: "List patterns learned from rejections",
		Long:  "Lists rejected chunks so drafting can avoid approaches that previously failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if municipality != "" {
				query.Set("municipality", municipality)
			}
			if documentType != "" {
				query.Set("document_type", documentType)
			}

			path := "/negative-constraints"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("negative constraints retrieval failed: %w", err)
			}

			return printChunkSet(resp.Data, outputJSON, "No negative constraints found.")
		},
	}

	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Filter by municipality")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Filter by document type")

	return cmd
}

func printChunkSet(data json.RawMessage, outputJSON bool, emptyMessage string) error {
	var set struct {
		Items []ChunkView `json:"items"`
	}
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(set, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(set.Items) == 0 {
		fmt.Println(emptyMessage)
		return nil
	}

	fmt.Printf("%d records:\n\n", len(set.Items))
	printChunkList(set.Items)
	return nil
}
