// Package goldstore persists the business-ready gold layer in SQLite.
// SQLite has no array-of-struct columns, so nested values arrive from
// silver pre-encoded as JSON text, and row ids as plain strings.
package goldstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

var validIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// tsLayout is how timestamps are stored in SQLite. Lexicographic order
// matches chronological order, so BETWEEN works on the text column.
const tsLayout = "2006-01-02 15:04:05"

// DefaultBatchSize is the page size for multi-row inserts.
const DefaultBatchSize = 1000

// Store wraps the gold SQLite database. Construct one per process and pass
// it to the stages that need it; the caller owns Close.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the gold database and verifies it.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("gold.path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open gold database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping gold database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing handle (primarily for testing).
func NewWithDB(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func fmtTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(v string) time.Time {
	t, err := time.Parse(tsLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EnsureArticleTable creates the gold articles table if absent.
func (s *Store) EnsureArticleTable(ctx context.Context, table string) error {
	if !validIdent.MatchString(table) {
		return fmt.Errorf("invalid identifier %q", table)
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	row_id TEXT NOT NULL,
	url TEXT NOT NULL,
	domain TEXT,
	category TEXT,
	url_title TEXT,
	date_published TEXT,
	date_modified TEXT NOT NULL,
	days_between_published_modified INTEGER,
	title TEXT,
	author TEXT,
	tags TEXT,
	content_links TEXT,
	content TEXT,
	content_paragraphs INTEGER,
	total_content_words INTEGER,
	year INTEGER,
	month INTEGER
)`, table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create gold table %s: %w", table, err)
	}
	s.logger.Info("Gold table ready", zap.String("table", table))
	return nil
}

// ReplicateWindow copies silver rows into gold for a window: delete the
// window from the destination, then insert the replacements in batched
// multi-row statements. The operation is one transaction; the deleted row
// count is read from the driver and returned for audit.
func (s *Store) ReplicateWindow(ctx context.Context, table string, win warehouse.Window, rows []blog.SilverArticle, batchSize int) (deleted, inserted int64, err error) {
	if !validIdent.MatchString(table) {
		return 0, 0, fmt.Errorf("invalid identifier %q", table)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin gold transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("Gold rollback failed", zap.Error(rbErr))
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE date_modified BETWEEN ? AND ?", table),
		fmtTS(win.Start), fmtTS(win.End))
	if err != nil {
		return 0, 0, fmt.Errorf("delete gold window: %w", err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("read deleted row count: %w", err)
	}
	s.logger.Info("Deleted gold window",
		zap.String("table", table),
		zap.String("window", win.String()),
		zap.Int64("rows", deleted))

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		n, insErr := insertArticleBatch(ctx, tx, table, rows[start:end])
		if insErr != nil {
			err = insErr
			return 0, 0, err
		}
		inserted += n
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit gold transaction: %w", err)
	}
	s.logger.Info("Replicated window into gold",
		zap.String("table", table),
		zap.String("window", win.String()),
		zap.Int64("inserted", inserted))
	return deleted, inserted, nil
}

func insertArticleBatch(ctx context.Context, tx *sql.Tx, table string, rows []blog.SilverArticle) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	const cols = 17
	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*cols)
	for _, a := range rows {
		tags, err := json.Marshal(a.Tags)
		if err != nil {
			return 0, fmt.Errorf("encode tags for %s: %w", a.URL, err)
		}
		links, err := json.Marshal(a.ContentLinks)
		if err != nil {
			return 0, fmt.Errorf("encode content links for %s: %w", a.URL, err)
		}
		content, err := json.Marshal(a.Content)
		if err != nil {
			return 0, fmt.Errorf("encode content for %s: %w", a.URL, err)
		}
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			a.RowID, a.URL, a.Domain, a.Category, a.URLTitle,
			fmtTS(a.DatePublished), fmtTS(a.DateModified),
			a.DaysBetweenPublishedModified, a.Title, a.Author,
			string(tags), string(links), string(content),
			a.ContentParagraphs, a.TotalContentWords, a.Year, a.Month,
		)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	row_id, url, domain, category, url_title, date_published, date_modified,
	days_between_published_modified, title, author, tags, content_links,
	content, content_paragraphs, total_content_words, year, month
) VALUES %s`, table, strings.Join(placeholders, ", "))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert gold batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read inserted row count: %w", err)
	}
	return n, nil
}

// FetchWindow reads the gold rows inside the window, decoding the JSON
// columns back into structured fields for the chunk/embed stage.
func (s *Store) FetchWindow(ctx context.Context, table string, win warehouse.Window) ([]blog.SilverArticle, error) {
	if !validIdent.MatchString(table) {
		return nil, fmt.Errorf("invalid identifier %q", table)
	}
	query := fmt.Sprintf(`
SELECT
	row_id, url, domain, category, url_title, date_published, date_modified,
	days_between_published_modified, title, author, tags, content_links,
	content, content_paragraphs, total_content_words, year, month
FROM %s
WHERE date_modified BETWEEN ? AND ?
ORDER BY date_modified`, table)
	rows, err := s.db.QueryContext(ctx, query, fmtTS(win.Start), fmtTS(win.End))
	if err != nil {
		return nil, fmt.Errorf("query gold window: %w", err)
	}
	defer rows.Close()

	var out []blog.SilverArticle
	for rows.Next() {
		var a blog.SilverArticle
		var published, modified, tags, links, content string
		if err := rows.Scan(
			&a.RowID, &a.URL, &a.Domain, &a.Category, &a.URLTitle,
			&published, &modified, &a.DaysBetweenPublishedModified,
			&a.Title, &a.Author, &tags, &links, &content,
			&a.ContentParagraphs, &a.TotalContentWords, &a.Year, &a.Month,
		); err != nil {
			return nil, fmt.Errorf("scan gold row: %w", err)
		}
		a.DatePublished = parseTS(published)
		a.DateModified = parseTS(modified)
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", a.URL, err)
		}
		if err := json.Unmarshal([]byte(links), &a.ContentLinks); err != nil {
			return nil, fmt.Errorf("decode content links for %s: %w", a.URL, err)
		}
		if err := json.Unmarshal([]byte(content), &a.Content); err != nil {
			return nil, fmt.Errorf("decode content for %s: %w", a.URL, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gold rows: %w", err)
	}
	return out, nil
}

// RecentArticles returns the newest gold rows matching an optional filter.
// Feeds the dashboard's article list.
func (s *Store) RecentArticles(ctx context.Context, table string, filter Filter, limit int) ([]blog.SilverArticle, error) {
	if !validIdent.MatchString(table) {
		return nil, fmt.Errorf("invalid identifier %q", table)
	}
	if limit <= 0 {
		limit = 10
	}
	clause, args, err := filter.Clause()
	if err != nil {
		return nil, err
	}
	where := ""
	if clause != "" {
		where = "WHERE " + clause
	}
	query := fmt.Sprintf(`
SELECT row_id, url, title, author, date_published, date_modified, tags
FROM %s
%s
ORDER BY date_modified DESC
LIMIT ?`, table, where)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer rows.Close()

	var out []blog.SilverArticle
	for rows.Next() {
		var a blog.SilverArticle
		var published, modified, tags string
		if err := rows.Scan(&a.RowID, &a.URL, &a.Title, &a.Author, &published, &modified, &tags); err != nil {
			return nil, fmt.Errorf("scan recent article: %w", err)
		}
		a.DatePublished = parseTS(published)
		a.DateModified = parseTS(modified)
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", a.URL, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent articles: %w", err)
	}
	return out, nil
}
