package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/goldstore"
	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// newGoldCmd creates the 'gold' subcommand: replicate a silver window into
// the gold SQLite store.
func newGoldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gold",
		Short: "Replicate a silver window into the gold store",
		Long: `Fetches the window's rows from silver and replaces the same
window in the gold SQLite database. An empty silver window still clears
the gold window, so removals propagate downstream.`,
	}
	win := addWindowFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runGoldCommand(cmd, win)
	}
	return cmd
}

func runGoldCommand(cmd *cobra.Command, winFlags *windowFlags) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg
	win, err := winFlags.window()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	wh, err := warehouse.New(ctx, cfg.Warehouse.DSN, app.Logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	gold, err := goldstore.Open(cfg.Gold.Path, app.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gold.Close(); cerr != nil {
			app.Logger.Warn("Failed to close gold store", zap.Error(cerr))
		}
	}()

	pub, err := buildPublisher(ctx, app)
	if err != nil {
		return err
	}
	defer pub.Close()

	replicator := pipeline.NewGoldReplicator(
		wh,
		gold,
		cfg.Warehouse.SilverTable,
		cfg.Gold.ArticleTable,
		cfg.Gold.BatchSize,
		logging.ForStage(app.Logger, "gold"),
	)
	counts, err := replicator.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("run gold stage: %w", err)
	}

	publishSummary(ctx, app, pub, map[string]any{
		"stage":  "gold",
		"window": win.String(),
		"counts": counts,
	})
	return nil
}
