package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/norddok/norddok/internal/cli"
	"github.com/norddok/norddok/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "norddok",
		Short: "Norddok CLI - Confidence-weighted compliance knowledge store",
		Long: `Norddok CLI manages BR18 compliance knowledge learned from municipal
approval and rejection outcomes.

Environment variables:
  NORDDOK_API_TOKEN   API bearer token (empty when the server runs without auth)
  NORDDOK_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API bearer token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.LogoutCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ContextCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.ApproveCmd())
	rootCmd.AddCommand(client.RejectCmd())
	rootCmd.AddCommand(client.GoldenRecordsCmd())
	rootCmd.AddCommand(client.NegativeConstraintsCmd())
	rootCmd.AddCommand(client.InsightsCmd())
	rootCmd.AddCommand(client.ConfirmCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.DeleteSourceCmd())
	rootCmd.AddCommand(client.ClearCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
