package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigCmd creates the config command group.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-url <url>",
		Short: "Save the API base URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsValidAPIURL(args[0]) {
				return fmt.Errorf("invalid API URL %q (expected http:// or https://)", args[0])
			}
			if err := SaveGlobalConfig(&GlobalConfig{APIURL: args[0]}); err != nil {
				return err
			}
			path, _ := GetConfigPath()
			fmt.Printf("Saved API URL to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective API base URL and where it came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagURL, _ := cmd.Flags().GetString("api-url")
			source, url, err := ResolveAPIURL(flagURL)
			if err != nil {
				return err
			}
			fmt.Printf("API URL: %s (%s)\n", url, source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the saved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return DeleteGlobalConfig()
		},
	})

	return cmd
}
