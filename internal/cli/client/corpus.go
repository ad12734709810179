package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// IngestCmd creates the ingest command, which splits a document into
// chunks server-side and stores them as regulatory corpus knowledge.
func IngestCmd() *cobra.Command {
	var (
		sourceKind     string
		sourceRef      string
		municipality   string
		documentType   string
		approvalStatus string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a corpus document",
		Long:  "Reads a text document (use '-' for stdin), splits it into chunks on the server, and stores each chunk with a baseline confidence.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var content []byte
			var err error
			if args[0] == "-" {
				content, err = io.ReadAll(os.Stdin)
			} else {
				content, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := map[string]any{
				"content":          string(content),
				"source_reference": sourceRef,
			}
			if sourceKind != "" {
				req["source_kind"] = sourceKind
			}
			if municipality != "" {
				req["municipality"] = municipality
			}
			if documentType != "" {
				req["document_type"] = documentType
			}
			if approvalStatus != "" {
				req["approval_status"] = approvalStatus
			}

			resp, err := api.Post("/corpus", req)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			var result struct {
				Chunks []ChunkView     `json:"chunks"`
				Report BatchReportView `json:"report"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Ingested %d chunks from %s\n", result.Report.Inserted, args[0])
			for _, failure := range result.Report.Failed {
				fmt.Printf("  chunk %d failed: %s\n", failure.Index, failure.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceKind, "kind", "k", "", "Source kind (defaults to regulation on the server)")
	cmd.Flags().StringVarP(&sourceRef, "reference", "r", "", "Source reference, e.g. BR18-kap5 (required)")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Municipality the document applies to")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "BR18 document code, e.g. BSR")
	cmd.Flags().StringVar(&approvalStatus, "status", "", "Approval status for the stored chunks")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}
