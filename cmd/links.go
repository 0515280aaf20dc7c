package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/goldstore"
	"github.com/pybitesdata/blogpipe/internal/linkcheck"
	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// newLinksCmd creates the 'links' subcommand: probe the liveness of every
// content link in a window.
func newLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Probe content link liveness for a window",
		Long: `Fetches the window's content links from the silver fanout table,
probes each one over HTTP with bounded concurrency, and replaces the
window's rows in the gold link status table with the classifications.`,
	}
	win := addWindowFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runLinksCommand(cmd, win)
	}
	return cmd
}

func runLinksCommand(cmd *cobra.Command, winFlags *windowFlags) error {
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

	auditor := pipeline.NewLinkAuditor(
		wh,
		linkcheck.New(cfg.ProbeTimeout(), cfg.Probe.Concurrency, app.Logger),
		gold,
		cfg.Warehouse.LinksTable,
		cfg.Gold.LinkStatusTable,
		cfg.Gold.BatchSize,
		logging.ForStage(app.Logger, "links"),
	)
	counts, err := auditor.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("run links stage: %w", err)
	}

	publishSummary(ctx, app, pub, map[string]any{
		"stage":  "links",
		"window": win.String(),
		"counts": counts,
	})
	return nil
}
