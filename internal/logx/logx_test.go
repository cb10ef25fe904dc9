package logx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebugFilteringByComponent(t *testing.T) {
	SetDebug(true, []string{"indexer"})
	defer SetDebug(false, nil)

	require.True(t, IsDebugEnabledFor("indexer"))
	require.False(t, IsDebugEnabledFor("retrieval"))
}

func TestRecentEntriesFiltersByComponentAndTime(t *testing.T) {
	logger := NewLogger("knowledge-test")
	before := time.Now().UTC()
	logger.Info("hello %s", "world")

	entries := RecentEntries("knowledge-test", before)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		require.Equal(t, "knowledge-test", e.Component)
	}

	future := time.Now().UTC().Add(time.Hour)
	require.Empty(t, RecentEntries("knowledge-test", future))
}

func TestWrapReturnsNilOnNilError(t *testing.T) {
	require.NoError(t, Wrap(nil, "no-op"))
}
