package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/config"
	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/notify"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType struct{}

var appKey appKeyType

// App carries the services every subcommand needs. Stage-specific
// dependencies (warehouse, gold store, renderer) are built inside the
// subcommand that uses them, so running one stage never requires the
// credentials of another.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
}

// Close flushes buffered log entries.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

// newApp is the application factory. It's a variable so tests can replace
// it with a mock factory.
var newApp = func(_ context.Context) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()
	return &App{Cfg: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blogpipe",
		Short: "Medallion data pipeline for the Pybites blog.",
		Long: `blogpipe moves blog content through a medallion architecture:
sitemap discovery feeds raw storage, raw feeds bronze, bronze feeds silver,
silver feeds gold, and gold feeds a vector store for retrieval. Each stage
is a subcommand and each backfill is windowed and re-runnable.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults and BLOGPIPE_* env vars)")

	cmd.AddCommand(
		newSitemapCmd(),
		newBronzeCmd(),
		newSilverCmd(),
		newGoldCmd(),
		newLinksCmd(),
		newRAGCmd(),
		newServeCmd(),
	)

	return cmd
}

// Execute is the main entry point. Any command or validation error exits
// non-zero.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// buildPublisher returns the configured Pub/Sub publisher, or a no-op when
// notifications are not configured.
func buildPublisher(ctx context.Context, app *App) (notify.Publisher, error) {
	if app.Cfg.PubSub.ProjectID == "" {
		return notify.Noop{}, nil
	}
	pub, err := notify.NewPubSub(ctx, app.Cfg.PubSub.ProjectID, app.Cfg.PubSub.TopicName, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	return pub, nil
}

func publishSummary(ctx context.Context, app *App, pub notify.Publisher, payload any) {
	if _, err := pub.Publish(ctx, payload); err != nil {
		app.Logger.Warn("Failed to publish run summary", zap.Error(err))
	}
}
