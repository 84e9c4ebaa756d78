package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/citedoc/internal/config"
	"github.com/cloo-solutions/citedoc/internal/jobs"
	"github.com/spf13/cobra"
)

// IndexCmd returns the index command, a one-shot backfill of missing
// similarity indexes.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build missing similarity indexes",
		Long:  "Build similarity indexes for every stored document that lacks one, then exit",
		RunE:  runIndex,
	}

	cmd.Flags().Int("batch-size", 10, "Documents to index per pass")
	cmd.Flags().Int("passes", jobs.MaxRetries, "Maximum passes over unindexed documents")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("CITEDOC_DATABASE_URL is required: the in-memory store is empty at startup")
	}

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	passes, _ := cmd.Flags().GetInt("passes")

	worker := jobs.NewIndexWorker(c.store, c.documents, batchSize)
	for i := 0; i < passes; i++ {
		pending, err := c.store.ListUnindexed(ctx, 1)
		if err != nil {
			return fmt.Errorf("failed to list unindexed documents: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		if err := worker.ProcessJobs(ctx); err != nil {
			return fmt.Errorf("index pass %d failed: %w", i+1, err)
		}
	}

	log.Println("index: done")
	return nil
}
