package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/rawstore"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// newBronzeCmd creates the 'bronze' subcommand: merge raw NDJSON partitions
// into the bronze table.
func newBronzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bronze",
		Short: "Load raw article partitions into the bronze table",
		Long: `Reads every NDJSON partition from raw storage and merges the
articles into the bronze table. The merge only inserts new or changed
(url, date_modified) rows, so re-running is safe.`,
		RunE: runBronzeCommand,
	}
}

func runBronzeCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg
	ctx := cmd.Context()

	wh, err := warehouse.New(ctx, cfg.Warehouse.DSN, app.Logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	raw, err := rawstore.New(ctx, cfg.Storage.Bucket, app.Logger)
	if err != nil {
		return err
	}
	defer raw.Close()

	pub, err := buildPublisher(ctx, app)
	if err != nil {
		return err
	}
	defer pub.Close()

	loader := pipeline.NewBronzeLoader(raw, wh, cfg.Warehouse.BronzeTable, cfg.Storage.Prefix, logging.ForStage(app.Logger, "bronze"))
	read, total, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("run bronze stage: %w", err)
	}

	publishSummary(ctx, app, pub, map[string]any{
		"stage":      "bronze",
		"read":       read,
		"total_rows": total,
	})
	return nil
}
