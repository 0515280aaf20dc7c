package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

// EnsureSilverTable creates the silver articles table if absent.
func (w *Warehouse) EnsureSilverTable(ctx context.Context, table string) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	row_id UUID DEFAULT gen_random_uuid(),
	url TEXT NOT NULL,
	domain TEXT,
	category TEXT,
	url_title TEXT,
	date_published TIMESTAMP,
	date_modified TIMESTAMP NOT NULL,
	days_between_published_modified INT,
	title TEXT,
	author TEXT,
	tags TEXT[],
	content_links JSONB,
	content TEXT[],
	content_paragraphs BIGINT,
	total_content_words BIGINT,
	year INT,
	month INT
)`, table)
	if _, err := w.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create silver table %s: %w", table, err)
	}
	w.logger.Info("Silver table ready", zap.String("table", table))
	return nil
}

// EnsureContentLinksTable creates the silver content-link fanout table.
func (w *Warehouse) EnsureContentLinksTable(ctx context.Context, table string) error {
	if err := validateIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	row_id UUID DEFAULT gen_random_uuid(),
	url TEXT NOT NULL,
	alias TEXT,
	link TEXT,
	date_modified TIMESTAMP NOT NULL
)`, table)
	if _, err := w.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create content links table %s: %w", table, err)
	}
	w.logger.Info("Content links table ready", zap.String("table", table))
	return nil
}

// BackfillSilver recomputes the silver rows for a window: delete everything
// in the window, then insert the transformed bronze rows, keeping only the
// latest version of each URL (rank 1 by date_modified descending). Running
// it twice against an unchanged bronze table yields identical content.
//
// The delete always executes, even when bronze has nothing in the window,
// so stale silver rows are cleared. Delete and insert counts come from the
// command tags and are returned for audit.
func (w *Warehouse) BackfillSilver(ctx context.Context, silverTable, bronzeTable string, win Window) (deleted, inserted int64, err error) {
	if err := validateIdent(silverTable); err != nil {
		return 0, 0, err
	}
	if err := validateIdent(bronzeTable); err != nil {
		return 0, 0, err
	}

	err = w.withTx(ctx, func(tx pgx.Tx) error {
		delTag, err := tx.Exec(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE date_modified BETWEEN $1 AND $2`, silverTable), win.Start, win.End)
		if err != nil {
			return fmt.Errorf("delete silver window: %w", err)
		}
		deleted = delTag.RowsAffected()
		w.logger.Info("Deleted silver window",
			zap.String("table", silverTable),
			zap.String("window", win.String()),
			zap.Int64("rows", deleted))

		insTag, err := tx.Exec(ctx, fmt.Sprintf(`
WITH bronze AS (
	SELECT *,
		ROW_NUMBER() OVER (PARTITION BY url ORDER BY date_modified DESC) AS rn
	FROM %s
	WHERE date_modified BETWEEN $1 AND $2
)
INSERT INTO %s (
	url, domain, category, url_title, date_published, date_modified,
	days_between_published_modified, title, author, tags, content_links,
	content, content_paragraphs, total_content_words, year, month
)
SELECT
	url,
	SPLIT_PART(url, '/', 1) || '//' || SPLIT_PART(url, '/', 3),
	SPLIT_PART(url, '/', 4),
	SPLIT_PART(url, '/', -2),
	date_published,
	date_modified,
	EXTRACT(DAY FROM (date_modified - date_published))::INT,
	title,
	author,
	tags,
	content_links,
	content,
	COALESCE(ARRAY_LENGTH(content, 1), 0),
	COALESCE(
		(SELECT SUM(ARRAY_LENGTH(REGEXP_SPLIT_TO_ARRAY(p, '\s+'), 1))
		 FROM UNNEST(content) AS t(p)),
		0
	),
	EXTRACT(YEAR FROM date_modified)::INT,
	EXTRACT(MONTH FROM date_modified)::INT
FROM bronze
WHERE rn = 1`, bronzeTable, silverTable), win.Start, win.End)
		if err != nil {
			return fmt.Errorf("insert silver window: %w", err)
		}
		inserted = insTag.RowsAffected()
		w.logger.Info("Inserted silver window",
			zap.String("table", silverTable),
			zap.String("window", win.String()),
			zap.Int64("rows", inserted))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

// BackfillContentLinks regenerates the content-link fanout rows for a
// window: same delete-then-insert discipline as the parent silver backfill,
// run as its own transaction, keyed by (url, link) but partitioned by the
// owning article's date_modified.
func (w *Warehouse) BackfillContentLinks(ctx context.Context, linksTable, silverTable string, win Window) (deleted, inserted int64, err error) {
	if err := validateIdent(linksTable); err != nil {
		return 0, 0, err
	}
	if err := validateIdent(silverTable); err != nil {
		return 0, 0, err
	}

	err = w.withTx(ctx, func(tx pgx.Tx) error {
		delTag, err := tx.Exec(ctx, fmt.Sprintf(`
DELETE FROM %s WHERE date_modified BETWEEN $1 AND $2`, linksTable), win.Start, win.End)
		if err != nil {
			return fmt.Errorf("delete content links window: %w", err)
		}
		deleted = delTag.RowsAffected()
		w.logger.Info("Deleted content links window",
			zap.String("table", linksTable),
			zap.String("window", win.String()),
			zap.Int64("rows", deleted))

		insTag, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (url, alias, link, date_modified)
SELECT s.url, l.text, l.link, s.date_modified
FROM %s s
CROSS JOIN LATERAL JSONB_TO_RECORDSET(s.content_links) AS l(text TEXT, link TEXT)
WHERE s.date_modified BETWEEN $1 AND $2`, linksTable, silverTable), win.Start, win.End)
		if err != nil {
			return fmt.Errorf("insert content links window: %w", err)
		}
		inserted = insTag.RowsAffected()
		w.logger.Info("Inserted content links window",
			zap.String("table", linksTable),
			zap.String("window", win.String()),
			zap.Int64("rows", inserted))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

// FetchSilverWindow reads the silver rows whose date_modified falls inside
// the window, for replication into the gold store.
func (w *Warehouse) FetchSilverWindow(ctx context.Context, table string, win Window) ([]blog.SilverArticle, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT
	row_id::TEXT, url, domain, category, url_title, date_published,
	date_modified, days_between_published_modified, title, author, tags,
	content_links, content, content_paragraphs, total_content_words, year, month
FROM %s
WHERE date_modified BETWEEN $1 AND $2
ORDER BY date_modified`, table)
	rows, err := w.pool.Query(ctx, query, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("query silver window: %w", err)
	}
	defer rows.Close()

	var out []blog.SilverArticle
	for rows.Next() {
		var a blog.SilverArticle
		var linksJSON []byte
		if err := rows.Scan(
			&a.RowID, &a.URL, &a.Domain, &a.Category, &a.URLTitle,
			&a.DatePublished, &a.DateModified, &a.DaysBetweenPublishedModified,
			&a.Title, &a.Author, &a.Tags, &linksJSON, &a.Content,
			&a.ContentParagraphs, &a.TotalContentWords, &a.Year, &a.Month,
		); err != nil {
			return nil, fmt.Errorf("scan silver row: %w", err)
		}
		if len(linksJSON) > 0 {
			if err := json.Unmarshal(linksJSON, &a.ContentLinks); err != nil {
				return nil, fmt.Errorf("decode content links for %s: %w", a.URL, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate silver rows: %w", err)
	}
	return out, nil
}

// FetchContentLinks reads the fanout rows inside the window, for liveness
// probing.
func (w *Warehouse) FetchContentLinks(ctx context.Context, table string, win Window) ([]blog.ContentLinkRow, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT row_id::TEXT, url, alias, link, date_modified
FROM %s
WHERE date_modified BETWEEN $1 AND $2`, table)
	rows, err := w.pool.Query(ctx, query, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("query content links window: %w", err)
	}
	defer rows.Close()

	var out []blog.ContentLinkRow
	for rows.Next() {
		var r blog.ContentLinkRow
		if err := rows.Scan(&r.RowID, &r.URL, &r.Alias, &r.Link, &r.DateModified); err != nil {
			return nil, fmt.Errorf("scan content link row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content link rows: %w", err)
	}
	return out, nil
}
