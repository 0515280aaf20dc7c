package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportCountsConcurrently(t *testing.T) {
	t.Parallel()

	r := &Report{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				r.AddProcessed()
			case 1:
				r.AddFailed("item", errors.New("boom"))
			default:
				r.AddSkipped()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, r.Total())
	require.Equal(t, 17, r.Processed())
	require.Equal(t, 17, r.Failed())
	require.Equal(t, 16, r.Skipped())
	require.Len(t, r.Failures(), 17)
}

func TestReportSummarize(t *testing.T) {
	t.Parallel()

	r := &Report{}
	r.AddProcessed()
	r.AddProcessed()
	r.AddFailed("https://pybit.es/articles/x/", errors.New("render timeout"))
	r.AddChunks(9)

	s := r.Summarize("rag", "[2024-01-01 00:00:00, 2024-01-31 23:59:59]")
	require.Equal(t, "rag", s.Stage)
	require.Equal(t, 2, s.Processed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 9, s.Chunks)
	require.Len(t, s.Failures, 1)
	require.Equal(t, "render timeout", s.Failures[0].Err)

	// LogSummary only logs; it must not mutate the counters.
	r.LogSummary(zap.NewNop(), "rag", 3)
	require.Equal(t, 3, r.Total())
}
