package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

// EnsureBronzeTable creates the bronze articles table if absent. Bronze is
// append-mostly: multiple versions of a URL may coexist transiently, the
// silver backfill picks the latest by date_modified.
func (w *Warehouse) EnsureBronzeTable(ctx context.Context, table string) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url TEXT NOT NULL,
	title TEXT,
	date_published TIMESTAMP,
	date_modified TIMESTAMP NOT NULL,
	author TEXT,
	tags TEXT[],
	content_links JSONB,
	content TEXT[],
	year INT,
	month INT
)`, table)
	if _, err := w.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create bronze table %s: %w", table, err)
	}
	w.logger.Info("Bronze table ready", zap.String("table", table))
	return nil
}

// MergeArticles loads a batch of parsed articles into bronze using the
// staging anti-join merge: bulk copy into a transient table shaped like the
// target, then insert only new or changed (url, date_modified) rows. The
// whole unit is one transaction; a failed bulk load aborts everything.
func (w *Warehouse) MergeArticles(ctx context.Context, table string, articles []blog.Article) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	if len(articles) == 0 {
		w.logger.Warn("No articles to merge into bronze", zap.String("table", table))
		return nil
	}

	return w.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
CREATE TEMPORARY TABLE tmp_bronze_articles ON COMMIT DROP AS
SELECT * FROM %s WHERE 1=0`, table))
		if err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}

		staged, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tmp_bronze_articles"},
			[]string{"url", "title", "date_published", "date_modified", "author", "tags", "content_links", "content", "year", "month"},
			pgx.CopyFromSlice(len(articles), func(i int) ([]any, error) {
				a := articles[i]
				links, err := json.Marshal(a.ContentLinks)
				if err != nil {
					return nil, fmt.Errorf("marshal content links for %s: %w", a.URL, err)
				}
				return []any{
					a.URL, a.Title, a.DatePublished, a.DateModified, a.Author,
					a.Tags, links, a.Content, a.Year, a.Month,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("bulk load staging table: %w", err)
		}
		w.logger.Info("Staged articles", zap.String("table", table), zap.Int64("rows", staged))

		tag, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s
SELECT t.*
FROM tmp_bronze_articles t
LEFT JOIN %s main ON t.url = main.url
WHERE main.url IS NULL OR t.date_modified <> main.date_modified`, table, table))
		if err != nil {
			return fmt.Errorf("merge staging into %s: %w", table, err)
		}
		w.logger.Info("Merged articles into bronze",
			zap.String("table", table),
			zap.Int64("inserted", tag.RowsAffected()))
		return nil
	})
}

// CountRows reads back the current row count. Purely observational; it is
// not part of the merge correctness contract.
func (w *Warehouse) CountRows(ctx context.Context, table string) (int64, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	var count int64
	if err := w.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return count, nil
}
