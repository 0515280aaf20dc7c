package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/api"
	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/embedding"
	"github.com/pybitesdata/blogpipe/internal/goldstore"
	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

// newServeCmd creates the 'serve' subcommand: run the search and metrics
// HTTP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve hybrid search over ingested blogs",
		Long: `Starts an HTTP server exposing hybrid (dense + sparse) search
over the vector store, a recent-articles listing from the gold store,
health checks, and Prometheus metrics.`,
		RunE: runServeCommand,
	}
}

// goldArticles adapts the gold store to the API's article listing.
type goldArticles struct {
	store *goldstore.Store
	table string
}

func (g goldArticles) Recent(ctx context.Context, author, tag string, limit int) ([]blog.SilverArticle, error) {
	filter := goldstore.Filter{Mode: goldstore.ModeAnd}
	if author != "" {
		filter.Conditions = append(filter.Conditions, goldstore.AuthorIs(author))
	}
	if tag != "" {
		filter.Conditions = append(filter.Conditions, goldstore.HasTag(tag))
	}
	return g.store.RecentArticles(ctx, g.table, filter, limit)
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required to serve search")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gold, err := goldstore.Open(cfg.Gold.Path, app.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gold.Close(); cerr != nil {
			app.Logger.Warn("Failed to close gold store", zap.Error(cerr))
		}
	}()

	vectors, err := vectorstore.Open(ctx, cfg.Vector.Path, cfg.Vector.Collection, cfg.Vector.Dims, app.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := vectors.Close(); cerr != nil {
			app.Logger.Warn("Failed to close vector store", zap.Error(cerr))
		}
	}()

	searcher := api.NewSearchService(
		embedding.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		vectors,
		vectorstore.DefaultDenseWeight,
		vectorstore.DefaultSparseWeight,
	)
	server := api.NewServer(searcher, goldArticles{store: gold, table: cfg.Gold.ArticleTable}, app.Logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("Serving search API", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	app.Logger.Info("Server stopped")
	return nil
}
