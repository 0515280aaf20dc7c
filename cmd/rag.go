package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/chunker"
	"github.com/pybitesdata/blogpipe/internal/embedding"
	"github.com/pybitesdata/blogpipe/internal/goldstore"
	"github.com/pybitesdata/blogpipe/internal/logging"
	"github.com/pybitesdata/blogpipe/internal/pipeline"
	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

// newRAGCmd creates the 'rag' subcommand: chunk, embed, and ingest a gold
// window into the vector store.
func newRAGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Chunk, embed, and ingest a gold window into the vector store",
		Long: `Reads the window's articles from the gold store, splits their
content into overlapping token windows, embeds each chunk, and upserts the
chunks into the vector store. Re-ingesting an article replaces its chunks.`,
	}
	win := addWindowFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runRAGCommand(cmd, win)
	}
	return cmd
}

func runRAGCommand(cmd *cobra.Command, winFlags *windowFlags) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required for the rag stage")
	}
	win, err := winFlags.window()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
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

	tok, err := chunker.NewTiktoken(cfg.Chunking.Encoding)
	if err != nil {
		return err
	}
	splitter, err := chunker.New(tok, cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	pub, err := buildPublisher(ctx, app)
	if err != nil {
		return err
	}
	defer pub.Close()

	ingestor := pipeline.NewChunkEmbedIngestor(
		gold,
		splitter,
		embedding.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		vectors,
		pipeline.IngestorConfig{
			GoldTable:   cfg.Gold.ArticleTable,
			GroupSize:   cfg.RAG.GroupSize,
			Concurrency: cfg.RAG.Concurrency,
		},
		logging.ForStage(app.Logger, "rag"),
	)
	report, err := ingestor.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("run rag stage: %w", err)
	}

	publishSummary(ctx, app, pub, report.Summarize("rag", win.String()))
	return nil
}
