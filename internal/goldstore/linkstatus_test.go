package goldstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

func sampleStatuses() []blog.LinkStatusRow {
	modified := time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC)
	return []blog.LinkStatusRow{
		{RowID: "r1", URL: "https://pybit.es/articles/a/", Link: "https://docs.python.org", Status: blog.LinkExternalWorking, DateModified: modified},
		{RowID: "r2", URL: "https://pybit.es/articles/a/", Link: "/articles/b/", Status: blog.LinkInternalWorking, DateModified: modified},
		{RowID: "r3", URL: "https://pybit.es/articles/a/", Link: "https://gone.example.com", Status: "timeout 30 sec", DateModified: modified},
	}
}

func TestReplaceLinkStatusesRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	win := testWindow(t)

	require.NoError(t, s.EnsureLinkStatusTable(ctx, "gold_link_statuses"))

	deleted, inserted, err := s.ReplaceLinkStatuses(ctx, "gold_link_statuses", win, sampleStatuses(), 2)
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.Equal(t, int64(3), inserted)

	// Re-running replaces the window wholesale.
	deleted, inserted, err = s.ReplaceLinkStatuses(ctx, "gold_link_statuses", win, sampleStatuses(), 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)
	require.Equal(t, int64(3), inserted)
}

func TestReplaceLinkStatusesEmptyInputClearsWindow(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	win := testWindow(t)

	require.NoError(t, s.EnsureLinkStatusTable(ctx, "gold_link_statuses"))
	_, _, err := s.ReplaceLinkStatuses(ctx, "gold_link_statuses", win, sampleStatuses(), 0)
	require.NoError(t, err)

	deleted, inserted, err := s.ReplaceLinkStatuses(ctx, "gold_link_statuses", win, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)
	require.Zero(t, inserted)
}

func TestReplaceLinkStatusesRejectsBadIdentifier(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, _, err := s.ReplaceLinkStatuses(context.Background(), "statuses--", testWindow(t), nil, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid identifier")
}
