package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tramitalabs/convoca/internal/cli"
	"github.com/tramitalabs/convoca/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "convoca",
		Short: "Convoca CLI - Search and ask about public grants",
		Long: `Convoca CLI provides commands to search Spanish public grant
opportunities and chat with the grant assistant.

Environment variables:
  CONVOCA_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.GetCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
