package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

// EnsureURLTable creates the sitemap URL table if it does not exist yet.
// Safe to run on every invocation.
func (w *Warehouse) EnsureURLTable(ctx context.Context, table string) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	url TEXT NOT NULL,
	last_modified TIMESTAMP NOT NULL
)`, table)
	if _, err := w.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create url table %s: %w", table, err)
	}
	w.logger.Info("URL table ready", zap.String("table", table))
	return nil
}

// UpsertURLs merges a batch of sitemap records into the URL table via a
// transient staging table: bulk copy into staging, then insert only rows
// whose url is new or whose last_modified changed. Existing rows are never
// overwritten, so re-running with identical input changes nothing.
//
// An empty batch is a logged no-op, not an error. Any failure inside the
// transaction rolls the whole operation back.
func (w *Warehouse) UpsertURLs(ctx context.Context, table string, records []blog.URLRecord) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	if len(records) == 0 {
		w.logger.Warn("No sitemap URLs to upsert", zap.String("table", table))
		return nil
	}

	return w.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
CREATE TEMPORARY TABLE tmp_sitemap_urls (
	url TEXT,
	last_modified TIMESTAMP
) ON COMMIT DROP`)
		if err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}

		staged, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tmp_sitemap_urls"},
			[]string{"url", "last_modified"},
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				return []any{records[i].URL, records[i].LastModified}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("bulk load staging table: %w", err)
		}
		w.logger.Info("Staged sitemap URLs", zap.String("table", table), zap.Int64("rows", staged))

		tag, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (url, last_modified)
SELECT t.url, t.last_modified
FROM tmp_sitemap_urls t
LEFT JOIN %s main ON t.url = main.url
WHERE main.url IS NULL OR t.last_modified <> main.last_modified`, table, table))
		if err != nil {
			return fmt.Errorf("merge staging into %s: %w", table, err)
		}
		w.logger.Info("Merged sitemap URLs",
			zap.String("table", table),
			zap.Int64("inserted", tag.RowsAffected()))
		return nil
	})
}

// URLsForMonth returns the sitemap URLs whose last_modified falls in the
// given year and month.
func (w *Warehouse) URLsForMonth(ctx context.Context, table string, year, month int) ([]string, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT url FROM %s
WHERE EXTRACT(YEAR FROM last_modified) = $1
  AND EXTRACT(MONTH FROM last_modified) = $2`, table)
	rows, err := w.pool.Query(ctx, query, year, month)
	if err != nil {
		return nil, fmt.Errorf("query urls for %d-%02d: %w", year, month, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url row: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate url rows: %w", err)
	}
	return urls, nil
}
