package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// newSilverCmd creates the 'silver' subcommand: rebuild the silver layer
// for a window from bronze.
func newSilverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "silver",
		Short: "Backfill the silver tables for a window",
		Long: `Deletes the window from the silver table, re-derives it from
bronze keeping only the latest version of each URL, then regenerates the
content-link fanout for the same window.`,
	}
	win := addWindowFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runSilverCommand(cmd, win)
	}
	return cmd
}

func runSilverCommand(cmd *cobra.Command, winFlags *windowFlags) error {
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

	pub, err := buildPublisher(ctx, app)
	if err != nil {
		return err
	}
	defer pub.Close()

	transformer := pipeline.NewSilverTransformer(
		wh,
		cfg.Warehouse.SilverTable,
		cfg.Warehouse.BronzeTable,
		cfg.Warehouse.LinksTable,
		logging.ForStage(app.Logger, "silver"),
	)
	counts, err := transformer.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("run silver stage: %w", err)
	}

	publishSummary(ctx, app, pub, map[string]any{
		"stage":  "silver",
		"window": win.String(),
		"counts": counts,
	})
	return nil
}
