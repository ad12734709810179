package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ApprovalOutcome is the payload for reporting an approved document.
type ApprovalOutcome struct {
	SourceReference    string              `json:"source_reference"`
	Municipality       string              `json:"municipality,omitempty"`
	ProjectName        string              `json:"project_name,omitempty"`
	DocumentType       string              `json:"document_type,omitempty"`
	ApprovalDate       string              `json:"approval_date,omitempty"`
	ApprovalSpeed      string              `json:"approval_speed,omitempty"`
	GoldenPatterns     []string            `json:"golden_patterns,omitempty"`
	SuccessfulElements []SuccessfulElement `json:"successful_elements,omitempty"`
}

type SuccessfulElement struct {
	Aspect     string `json:"aspect"`
	Reason     string `json:"reason,omitempty"`
	Replicable bool   `json:"replicable"`
}

// RejectionOutcome is the payload for reporting a rejected document.
type RejectionOutcome struct {
	SourceReference     string            `json:"source_reference"`
	Municipality        string            `json:"municipality,omitempty"`
	ProjectName         string            `json:"project_name,omitempty"`
	DocumentType        string            `json:"document_type,omitempty"`
	RejectionDate       string            `json:"rejection_date,omitempty"`
	NegativeConstraints []string          `json:"negative_constraints,omitempty"`
	RejectionReasons    []RejectionReason `json:"rejection_reasons,omitempty"`
}

type RejectionReason struct {
	Category      string `json:"category,omitempty"`
	SpecificIssue string `json:"specific_issue"`
	Requirement   string `json:"requirement,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

// ApproveCmd creates the approve command.
func ApproveCmd() *cobra.Command {
	var (
		fromFile      string
		municipality  string
		projectName   string
		documentType  string
		approvalDate  string
		approvalSpeed string
		patterns      []string
	)

	cmd := &cobra.Command{
		Use:   "approve [source-reference]",
		Short: "Report a municipal approval",
		Long: `Reports that a submitted document was approved. The store learns from the
golden patterns and successful elements and raises related confidence scores.

The outcome can be given as flags or read from a JSON file with --file,
in which case the file's source_reference is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var outcome ApprovalOutcome
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("failed to read outcome file: %w", err)
				}
				if err := json.Unmarshal(data, &outcome); err != nil {
					return fmt.Errorf("failed to parse outcome file: %w", err)
				}
			}

			if len(args) == 1 {
				outcome.SourceReference = args[0]
			}
			if outcome.SourceReference == "" {
				return fmt.Errorf("a source reference is required (argument or --file)")
			}

			if municipality != "" {
				outcome.Municipality = municipality
			}
			if projectName != "" {
				outcome.ProjectName = projectName
			}
			if documentType != "" {
				outcome.DocumentType = documentType
			}
			if approvalDate != "" {
				outcome.ApprovalDate = approvalDate
			}
			if approvalSpeed != "" {
				outcome.ApprovalSpeed = approvalSpeed
			}
			if len(patterns) > 0 {
				outcome.GoldenPatterns = append(outcome.GoldenPatterns, patterns...)
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/outcomes/approval", outcome)
			if err != nil {
				return fmt.Errorf("approval report failed: %w", err)
			}

			return printLearned(resp.Data, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "JSON file describing the approval outcome")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Municipality that approved the document")
	cmd.Flags().StringVar(&projectName, "project", "", "Project name")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Document type")
	cmd.Flags().StringVar(&approvalDate, "date", "", "Approval date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&approvalSpeed, "speed", "", "Approval speed (fast, standard, slow)")
	cmd.Flags().StringArrayVar(&patterns, "pattern", nil, "Golden pattern text (repeatable)")

	return cmd
}

// RejectCmd creates the reject command.
func RejectCmd() *cobra.Command {
	var (
		fromFile      string
		municipality  string
		projectName   string
		documentType  string
		rejectionDate string
		constraints   []string
	)

	cmd := &cobra.Command{
		Use:   "reject [source-reference]",
		Short: "Report a municipal rejection",
		Long: `Reports that a submitted document was rejected. The rejected patterns are
stored as negative constraints and any matching chunks are zeroed out.

The outcome can be given as flags or read from a JSON file with --file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var outcome RejectionOutcome
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("failed to read outcome file: %w", err)
				}
				if err := json.Unmarshal(data, &outcome); err != nil {
					return fmt.Errorf("failed to parse outcome file: %w", err)
				}
			}

			if len(args) == 1 {
				outcome.SourceReference = args[0]
			}
			if outcome.SourceReference == "" {
				return fmt.Errorf("a source reference is required (argument or --file)")
			}

			if municipality != "" {
				outcome.Municipality = municipality
			}
			if projectName != "" {
				outcome.ProjectName = projectName
			}
			if documentType != "" {
				outcome.DocumentType = documentType
			}
			if rejectionDate != "" {
				outcome.RejectionDate = rejectionDate
			}
			if len(constraints) > 0 {
				outcome.NegativeConstraints = append(outcome.NegativeConstraints, constraints...)
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/outcomes/rejection", outcome)
			if err != nil {
				return fmt.Errorf("rejection report failed: %w", err)
			}

			return printLearned(resp.Data, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "JSON file describing the rejection outcome")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Municipality that rejected the document")
	cmd.Flags().StringVar(&projectName, "project", "", "Project name")
	cmd.Flags().StringVarP(&documentType, "document-type", "d", "", "Document type")
	cmd.Flags().StringVar(&rejectionDate, "date", "", "Rejection date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&constraints, "constraint", nil, "Rejected pattern text (repeatable)")

	return cmd
}

func printLearned(data json.RawMessage, outputJSON bool) error {
	var result struct {
		Learned []ChunkView `json:"learned"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(result.Learned) == 0 {
		fmt.Println("Outcome recorded. No new chunks learned.")
		return nil
	}

	fmt.Printf("Outcome recorded. Learned %d chunks:\n\n", len(result.Learned))
	printChunkList(result.Learned)
	return nil
}
