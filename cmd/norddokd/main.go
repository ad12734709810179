package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/norddok/norddok/internal/cli"
	"github.com/norddok/norddok/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "norddokd",
		Short: "Norddok daemon",
		Long:  "Norddok daemon for running the compliance knowledge store API server",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
