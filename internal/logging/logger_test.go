package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	defer func() { _ = logger.Sync() }()

	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewProductionFiltersDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	defer func() { _ = logger.Sync() }()

	require.False(t, logger.Core().Enabled(zap.DebugLevel))
	require.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestForStageTagsEveryEntry(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := ForStage(zap.New(core), "silver")
	logger.Info("backfill done")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "silver", entries[0].ContextMap()["stage"])
}
