package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query              string `json:"query"`
	TopK               int    `json:"top_k,omitempty"`
	Municipality       string `json:"municipality,omitempty"`
	DocumentType       string `json:"document_type,omitempty"`
	IncludeRejected    bool   `json:"include_rejected,omitempty"`
	NoPrioritizeByRank bool   `json:"no_prioritize_by_rank,omitempty"`
}

// SearchMatch represents a single confidence-weighted match.
type SearchMatch struct {
	Chunk      ChunkView `json:"chunk"`
	Similarity float64   `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		topK            int
		municipality    string
		documentType    string
		includeRejected bool
		noPrioritize    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge store",
		Long:  "Searches stored knowledge with confidence-weighted semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, SearchRequest{
				Query:              args[0],
				TopK:               topK,
				Municipality:       municipality,
				DocumentType:       documentType,
				IncludeRejected:    includeRejected,
				NoPrioritizeByRank: noPrioritize,
			}, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of matches (server default when 0)")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Boost matches for this municipality")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Filter by document type")
	cmd.Flags().BoolVar(&includeRejected, "include-rejected", false, "Include rejected chunks in results")
	cmd.Flags().BoolVar(&noPrioritize, "no-rank", false, "Order by raw similarity instead of confidence-weighted rank")

	return cmd
}

func runSearch(cmd *cobra.Command, req SearchRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d matches:\n\n", len(searchResp.Matches))
	for i, match := range searchResp.Matches {
		fmt.Printf("%d. similarity %.3f\n", i+1, match.Similarity)
		printChunk(match.Chunk)
		if i < len(searchResp.Matches)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}

// ContextCmd creates the context command, which returns drafting context
// as plain text blocks rather than full chunk records.
func ContextCmd() *cobra.Command {
	var (
		topK         int
		municipality string
		documentType string
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Retrieve drafting context for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/search/context", SearchRequest{
				Query:        args[0],
				TopK:         topK,
				Municipality: municipality,
				DocumentType: documentType,
			})
			if err != nil {
				return fmt.Errorf("context retrieval failed: %w", err)
			}

			var ctxResp struct {
				Contents []string `json:"contents"`
			}
			if err := json.Unmarshal(resp.Data, &ctxResp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(ctxResp, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(ctxResp.Contents) == 0 {
				fmt.Println("No context found.")
				return nil
			}

			for i, content := range ctxResp.Contents {
				fmt.Println(content)
				if i < len(ctxResp.Contents)-1 {
					fmt.Println(strings.Repeat("-", 40))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of context blocks (server default when 0)")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Boost matches for this municipality")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Filter by document type")

	return cmd
}
