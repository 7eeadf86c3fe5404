package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var apiURL string
	var reset bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the client",
		Long:  "Stores the API URL in the global config and clears any saved session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				if err := DeleteGlobalConfig(); err != nil {
					return err
				}
				fmt.Println("Configuration cleared.")
				return nil
			}

			if apiURL == "" {
				apiURL = defaultAPIURL
			}
			if err := SaveGlobalConfig(&GlobalConfig{APIURL: apiURL}); err != nil {
				return err
			}

			configPath, _ := GetConfigPath()
			fmt.Printf("Configuration saved to %s (API URL: %s)\n", configPath, apiURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL to store")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the stored configuration")

	return cmd
}
