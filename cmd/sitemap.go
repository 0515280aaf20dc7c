// Package cmd defines and implements the CLI commands for the blogpipe
// executable.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/rawstore"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// newSitemapCmd creates the 'sitemap' subcommand: refresh the sitemap URL
// table, then render and parse the window's articles into raw storage.
func newSitemapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Ingest sitemap URLs and raw articles for a window",
		Long: `Fetches the blog's sitemap index, merges article URLs into the
warehouse, then renders and parses every article modified in the window
and writes the results as partitioned NDJSON to raw storage.`,
	}
	win := addWindowFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runSitemapCommand(cmd, win)
	}
	return cmd
}

func runSitemapCommand(cmd *cobra.Command, winFlags *windowFlags) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg

	// Catch a mistyped sitemap URL before touching any table.
	if !strings.Contains(cfg.Sitemap.IndexURL, cfg.Sitemap.HostMarker) {
		return fmt.Errorf("sitemap.index_url %q does not look like a %s sitemap", cfg.Sitemap.IndexURL, cfg.Sitemap.HostMarker)
	}
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

	raw, err := rawstore.New(ctx, cfg.Storage.Bucket, app.Logger)
	if err != nil {
		return err
	}
	defer raw.Close()

	renderer, err := blog.NewChromedpRenderer(cfg.Sitemap.UserAgent, cfg.Headless.MaxParallel, cfg.NavTimeout(), app.Logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(ctx); cerr != nil {
			app.Logger.Warn("Failed to close renderer", zap.Error(cerr))
		}
	}()

	pub, err := buildPublisher(ctx, app)
	if err != nil {
		return err
	}
	defer pub.Close()

	ingestor := pipeline.NewSitemapIngestor(
		blog.NewSitemapClient(cfg.Sitemap.UserAgent, app.Logger),
		wh,
		renderer,
		raw,
		pipeline.SitemapIngestorConfig{
			IndexURL: cfg.Sitemap.IndexURL,
			Marker:   cfg.Sitemap.PostMarker,
			URLTable: cfg.Warehouse.URLTable,
			Prefix:   cfg.Storage.Prefix,
			Parallel: cfg.Headless.MaxParallel,
		},
		logging.ForStage(app.Logger, "sitemap"),
	)

	report, err := ingestor.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("run sitemap stage: %w", err)
	}
	publishSummary(ctx, app, pub, report.Summarize("sitemap", win.String()))
	return nil
}
