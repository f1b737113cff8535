package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestRecordRun(t *testing.T) {
	var (
		s   = testStore(t)
		ctx = context.Background()
	)

	run, err := s.RecordRun(ctx, Run{
		Timeline:   "home",
		Scorer:     "SimpleWeighted",
		Threshold:  "normal",
		Hours:      12,
		OutputType: "html",
		PostCount:  5,
		BoostCount: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	runs, err := s.Runs(ctx, RunArgs{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "home", runs[0].Timeline)
	assert.Equal(t, 5, runs[0].PostCount)
}

func TestRuns_FilterAndLimit(t *testing.T) {
	var (
		s   = testStore(t)
		ctx = context.Background()
	)

	for _, outputType := range []string{"html", "bot", "html"} {
		_, err := s.RecordRun(ctx, Run{Timeline: "home", Scorer: "Simple", Threshold: "lax", Hours: 6, OutputType: outputType})
		require.NoError(t, err)
	}

	botRuns, err := s.Runs(ctx, RunArgs{OutputType: "bot"})
	require.NoError(t, err)
	assert.Len(t, botRuns, 1)

	limited, err := s.Runs(ctx, RunArgs{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBoostHistory(t *testing.T) {
	var (
		s   = testStore(t)
		ctx = context.Background()
	)

	run, err := s.RecordRun(ctx, Run{Timeline: "home", Scorer: "Simple", Threshold: "normal", Hours: 12, OutputType: "bot"})
	require.NoError(t, err)

	require.NoError(t, s.RecordBoost(ctx, run.ID, "101", "alice@example.social", "https://example.social/@alice/101"))
	require.NoError(t, s.RecordBoost(ctx, run.ID, "102", "bob@example.social", "https://example.social/@bob/102"))
	require.NoError(t, s.RecordBoost(ctx, run.ID, "103", "alice@example.social", "https://example.social/@alice/103"))

	boosted, err := s.HasBoosted(ctx, "101")
	require.NoError(t, err)
	assert.True(t, boosted)

	boosted, err = s.HasBoosted(ctx, "999")
	require.NoError(t, err)
	assert.False(t, boosted)

	// Re-recording the same status is a no-op
	require.NoError(t, s.RecordBoost(ctx, run.ID, "101", "alice@example.social", "https://example.social/@alice/101"))
	boosts, err := s.Boosts(ctx, BoostArgs{})
	require.NoError(t, err)
	assert.Len(t, boosts, 3)

	// Newest first
	assert.Equal(t, "103", boosts[0].StatusID)

	aliceBoosts, err := s.Boosts(ctx, BoostArgs{Acct: "alice@example.social"})
	require.NoError(t, err)
	assert.Len(t, aliceBoosts, 2)
}

func TestRecentBoostAccts(t *testing.T) {
	var (
		s   = testStore(t)
		ctx = context.Background()
	)

	run, err := s.RecordRun(ctx, Run{Timeline: "home", Scorer: "Simple", Threshold: "normal", Hours: 12, OutputType: "bot"})
	require.NoError(t, err)

	require.NoError(t, s.RecordBoost(ctx, run.ID, "1", "old@example.social", "u1"))
	require.NoError(t, s.RecordBoost(ctx, run.ID, "2", "alice@example.social", "u2"))
	require.NoError(t, s.RecordBoost(ctx, run.ID, "3", "bob@example.social", "u3"))
	require.NoError(t, s.RecordBoost(ctx, run.ID, "4", "alice@example.social", "u4"))

	// Only the last two boosts: alice (twice is once) and bob
	accts, err := s.RecentBoostAccts(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice@example.social", "bob@example.social"}, accts)

	all, err := s.RecentBoostAccts(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecentBoostAccts_Empty(t *testing.T) {
	s := testStore(t)

	accts, err := s.RecentBoostAccts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, accts)
}
