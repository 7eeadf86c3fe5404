package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tramitalabs/convoca/internal/cli"
	"github.com/tramitalabs/convoca/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "convocad",
		Short: "Convoca daemon",
		Long:  "Convoca daemon for running the grant search and chat API server",
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
