package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

func TestMergeArticlesEmptyBatchIsNoOp(t *testing.T) {
	t.Parallel()

	w, mock := newTestWarehouse(t)

	err := w.MergeArticles(context.Background(), "bronze_blogs", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeArticlesStagesAndMerges(t *testing.T) {
	t.Parallel()

	w, mock := newTestWarehouse(t)

	articles := []blog.Article{
		{
			URL:          "https://pybit.es/articles/a/",
			Title:        "A",
			DateModified: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC),
			Author:       "Bob",
			Tags:         []string{"python"},
			ContentLinks: []blog.ContentLink{{Text: "docs", Link: "https://docs.python.org"}},
			Content:      []string{"First paragraph.", "Second paragraph."},
			Year:         2024,
			Month:        3,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMPORARY TABLE tmp_bronze_articles").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(
		pgx.Identifier{"tmp_bronze_articles"},
		[]string{"url", "title", "date_published", "date_modified", "author", "tags", "content_links", "content", "year", "month"},
	).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO bronze_blogs").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := w.MergeArticles(context.Background(), "bronze_blogs", articles)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRows(t *testing.T) {
	t.Parallel()

	w, mock := newTestWarehouse(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := w.CountRows(context.Background(), "bronze_blogs")
	require.NoError(t, err)
	require.Equal(t, int64(42), count)
	require.NoError(t, mock.ExpectationsWereMet())
}
