package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// InsightsCmd creates the insights command.
func InsightsCmd() *cobra.Command {
	var (
		municipality string
		documentType string
	)

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Extract learning insights from stored feedback",
		Long: `Analyzes accumulated municipality feedback with a language model and
stores each extracted pattern as a derived-insight chunk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			payload := map[string]string{}
			if municipality != "" {
				payload["municipality"] = municipality
			}
			if documentType != "" {
				payload["document_type"] = documentType
			}

			resp, err := api.Post("/insights", payload)
			if err != nil {
				return fmt.Errorf("insight extraction failed: %w", err)
			}

			var result struct {
				Insights []struct {
					ID                 string   `json:"id"`
					Municipality       string   `json:"municipality"`
					DocumentType       string   `json:"document_type"`
					PatternDescription string   `json:"pattern_description"`
					Examples           []string `json:"examples"`
					ConfidenceScore    float64  `json:"confidence_score"`
					Recommendation     string   `json:"recommendation"`
				} `json:"insights"`
				Report struct {
					Inserted int `json:"inserted"`
				} `json:"report"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(result.Insights) == 0 {
				fmt.Println("No insights extracted.")
				return nil
			}

			fmt.Printf("Extracted %d insights (%d stored):\n\n", len(result.Insights), result.Report.Inserted)
			for i, insight := range result.Insights {
				scope := insight.Municipality
				if scope == "" {
					scope = "general"
				}
				fmt.Printf("%d. [%s] %s (confidence %.0f%%)\n", i+1, scope, insight.PatternDescription, insight.ConfidenceScore*100)
				if insight.Recommendation != "" {
					fmt.Printf("   Recommendation: %s\n", insight.Recommendation)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Limit analysis to one municipality")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "BR18 document code, e.g. BSR")

	return cmd
}
