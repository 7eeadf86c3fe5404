package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <grant-id>",
		Short: "Show one grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/grants/" + id)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var grant GrantResult
	if err := json.Unmarshal(resp.Data, &grant); err != nil {
		return fmt.Errorf("failed to parse grant: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(grant, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(grant.Title)
	fmt.Printf("Organization: %s\n", grant.Organization)
	fmt.Printf("BDNS code: %s\n", grant.BDNSCode)
	if grant.Summary != "" {
		fmt.Printf("\n%s\n\n", grant.Summary)
	}
	if len(grant.Regions) > 0 {
		fmt.Printf("Regions: %s\n", strings.Join(grant.Regions, ", "))
	}
	if grant.Sector != "" {
		fmt.Printf("Sector: %s\n", grant.Sector)
	}
	if grant.IsOpen {
		if grant.ApplicationEnd != "" {
			fmt.Printf("Application window: open until %s\n", grant.ApplicationEnd)
		} else {
			fmt.Println("Application window: open")
		}
	} else {
		fmt.Println("Application window: closed")
	}
	if grant.Budget != nil {
		fmt.Printf("Budget: %.0f EUR\n", *grant.Budget)
	}

	return nil
}
