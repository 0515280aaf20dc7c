package goldstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// EnsureLinkStatusTable creates the link liveness table if absent.
func (s *Store) EnsureLinkStatusTable(ctx context.Context, table string) error {
	if !validIdent.MatchString(table) {
		return fmt.Errorf("invalid identifier %q", table)
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	row_id TEXT,
	url TEXT NOT NULL,
	link TEXT,
	link_status TEXT NOT NULL,
	date_modified TEXT NOT NULL
)`, table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create link status table %s: %w", table, err)
	}
	s.logger.Info("Link status table ready", zap.String("table", table))
	return nil
}

// ReplaceLinkStatuses applies the window discipline to probe results:
// delete the window, insert the fresh classifications in batches.
func (s *Store) ReplaceLinkStatuses(ctx context.Context, table string, win warehouse.Window, statuses []blog.LinkStatusRow, batchSize int) (deleted, inserted int64, err error) {
	if !validIdent.MatchString(table) {
		return 0, 0, fmt.Errorf("invalid identifier %q", table)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin link status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("Link status rollback failed", zap.Error(rbErr))
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE date_modified BETWEEN ? AND ?", table),
		fmtTS(win.Start), fmtTS(win.End))
	if err != nil {
		return 0, 0, fmt.Errorf("delete link status window: %w", err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("read deleted row count: %w", err)
	}

	for start := 0; start < len(statuses); start += batchSize {
		end := min(start+batchSize, len(statuses))
		batch := statuses[start:end]
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*5)
		for _, st := range batch {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
			args = append(args, st.RowID, st.URL, st.Link, st.Status, fmtTS(st.DateModified))
		}
		query := fmt.Sprintf(`
INSERT INTO %s (row_id, url, link, link_status, date_modified)
VALUES %s`, table, strings.Join(placeholders, ", "))
		insRes, insErr := tx.ExecContext(ctx, query, args...)
		if insErr != nil {
			err = fmt.Errorf("insert link status batch: %w", insErr)
			return 0, 0, err
		}
		n, cntErr := insRes.RowsAffected()
		if cntErr != nil {
			err = fmt.Errorf("read inserted row count: %w", cntErr)
			return 0, 0, err
		}
		inserted += n
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit link status transaction: %w", err)
	}
	s.logger.Info("Replaced link statuses",
		zap.String("table", table),
		zap.String("window", win.String()),
		zap.Int64("deleted", deleted),
		zap.Int64("inserted", inserted))
	return deleted, inserted, nil
}
