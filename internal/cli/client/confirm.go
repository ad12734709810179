package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ConfirmCmd creates the confirm command, which records that a stored
// pattern was reused successfully in a new document.
func ConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <pattern-id>",
		Short: "Confirm a pattern was used successfully",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/confirmations", map[string]string{
				"pattern_id": args[0],
			})
			if err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}

			var result struct {
				PatternID     string `json:"pattern_id"`
				Confirmations int    `json:"confirmations"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Pattern %s confirmed (%d confirmations pending rescore)\n",
				result.PatternID, result.Confirmations)
			return nil
		},
	}
}
