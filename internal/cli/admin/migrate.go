package admin

import (
	"fmt"

	"github.com/cloo-solutions/citedoc/internal/config"
	"github.com/cloo-solutions/citedoc/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending migrations to the database named by CITEDOC_DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("CITEDOC_DATABASE_URL is required")
			}
			source, _ := cmd.Flags().GetString("migrations")
			return database.Migrate(cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}
