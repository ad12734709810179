package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// ChunkView mirrors the chunk payload returned by the API.
type ChunkView struct {
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
	CreatedAt          string         `json:"created_at"`
}

// BatchReportView mirrors the batch ingest report returned by the API.
type BatchReportView struct {
	Inserted int `json:"inserted"`
	Failed   []struct {
		Index   int    `json:"index"`
		Message string `json:"message"`
	} `json:"failed,omitempty"`
}

func printChunk(c ChunkView) {
	content := c.Content
	if len(content) > 120 {
		content = content[:117] + "..."
	}
	fmt.Printf("%s [%s, %.2f]\n", c.ID, c.ConfidenceCategory, c.ConfidenceScore)
	fmt.Printf("   %s\n", content)
	fmt.Printf("   Source: %s (%s)", c.SourceReference, c.SourceKind)
	if c.Municipality != "" {
		fmt.Printf("  Municipality: %s", c.Municipality)
	}
	if c.DocumentType != "" {
		fmt.Printf("  Type: %s", c.DocumentType)
	}
	fmt.Println()
}

func printChunkList(chunks []ChunkView) {
	for i, c := range chunks {
		printChunk(c)
		if i < len(chunks)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		sourceKind     string
		sourceRef      string
		municipality   string
		documentType   string
		approvalStatus string
		approvalSpeed  string
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a chunk to the knowledge store",
		Long:  "Adds a single chunk of compliance knowledge. The server computes the embedding and initial confidence.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := map[string]any{
				"content":          args[0],
				"source_kind":      sourceKind,
				"source_reference": sourceRef,
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
			if approvalSpeed != "" {
				req["approval_speed"] = approvalSpeed
			}

			resp, err := api.Post("/chunks", req)
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}

			var chunk ChunkView
			if err := json.Unmarshal(resp.Data, &chunk); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(chunk, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Println("Chunk added:")
				printChunk(chunk)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceKind, "kind", "k", "feedback", "Source kind (regulation, approved_example, feedback, derived_insight)")
	cmd.Flags().StringVarP(&sourceRef, "reference", "r", "", "Source reference, e.g. a case or project identifier (required)")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Municipality the knowledge applies to")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "BR18 document code, e.g. BSR")
	cmd.Flags().StringVar(&approvalStatus, "status", "", "Approval status (approved, rejected, unknown)")
	cmd.Flags().StringVar(&approvalSpeed, "speed", "", "Approval speed (fast, standard, slow)")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <chunk-id>",
		Short: "Get a chunk by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/chunks/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get failed: %w", err)
			}

			var chunk ChunkView
			if err := json.Unmarshal(resp.Data, &chunk); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(chunk, "", "  ")
				fmt.Println(string(output))
			} else {
				printChunk(chunk)
				fmt.Printf("   Status: %s  Created: %s\n", chunk.ApprovalStatus, chunk.CreatedAt)
			}
			return nil
		},
	}
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chunks in the knowledge store",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("limit", fmt.Sprintf("%d", limit))
			if cursor != "" {
				query.Set("cursor", cursor)
			}

			resp, err := api.Get("/chunks?" + query.Encode())
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}

			var page struct {
				Items   []ChunkView `json:"items"`
				Cursor  string      `json:"cursor,omitempty"`
				HasMore bool        `json:"has_more"`
			}
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(page, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(page.Items) == 0 {
				fmt.Println("No chunks found.")
				return nil
			}

			fmt.Printf("%d chunks:\n\n", len(page.Items))
			printChunkList(page.Items)
			if page.HasMore && page.Cursor != "" {
				fmt.Printf("\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

// DeleteSourceCmd creates the delete-source command.
func DeleteSourceCmd() *cobra.Command {
	var sourceKind string

	cmd := &cobra.Command{
		Use:   "delete-source <source-reference>",
		Short: "Delete all chunks from a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("source_reference", args[0])
			if sourceKind != "" {
				query.Set("source_kind", sourceKind)
			}

			resp, err := api.Delete("/chunks/source?" + query.Encode())
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			var result struct {
				Deleted int64 `json:"deleted"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			fmt.Printf("Deleted %d chunks from source %s\n", result.Deleted, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceKind, "kind", "k", "", "Restrict deletion to one source kind")

	return cmd
}

// ClearCmd creates the clear command.
func ClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk in the knowledge store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("clear removes all stored knowledge; re-run with --force to confirm")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/chunks"); err != nil {
				return fmt.Errorf("clear failed: %w", err)
			}

			fmt.Println("Knowledge store cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion of all chunks")

	return cmd
}
