package rankforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareScores(t *testing.T) {
	a := &Score{EntryID: "alice", Points: 100}
	b := &Score{EntryID: "bob", Points: 50}
	assert.Equal(t, -1, compareScores(a, b))
	assert.Equal(t, 1, compareScores(b, a))

	// Ties break by entry id ascending, so ordering is total.
	tied := &Score{EntryID: "carol", Points: 100}
	assert.Negative(t, compareScores(a, tied))
	assert.Positive(t, compareScores(tied, a))
}

func TestScoreboardSortAndRank(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills"))

	points := map[string]int64{"alice": 30, "bob": 50, "carol": 10, "dave": 50}
	for id, pts := range points {
		require.True(t, board.RegisterEntry(logger, id))
		require.True(t, board.RecordPoints(logger, id, "Kills", pts))
	}
	board.Recalculate("Kills")

	ranked := board.RankedScores("Kills")
	require.Len(t, ranked, 4)
	assert.Equal(t, "bob", ranked[0].EntryID)
	assert.Equal(t, "dave", ranked[1].EntryID)
	assert.Equal(t, "alice", ranked[2].EntryID)
	assert.Equal(t, "carol", ranked[3].EntryID)

	assert.Equal(t, 1, board.Rank(logger, "bob", "Kills"))
	assert.Equal(t, 2, board.Rank(logger, "dave", "Kills"))
	assert.Equal(t, 4, board.Rank(logger, "carol", "Kills"))
	assert.Equal(t, -1, board.Rank(logger, "nobody", "Kills"))
}

func TestScoreboardTotalCascade(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills", "Assists"))
	require.True(t, board.RegisterEntry(logger, "alice"))

	require.True(t, board.RecordPoints(logger, "alice", "Kills", 10))
	require.True(t, board.RecordPoints(logger, "alice", "Assists", 5))

	total, ok := board.GetScore(logger, "alice", TotalCategory)
	require.True(t, ok)
	assert.Equal(t, int64(15), total.Points)

	// Recalculating one category refreshes TOTAL as well.
	board.Recalculate("Kills")
	totalCategory, ok := board.Category(TotalCategory)
	require.True(t, ok)
	assert.False(t, totalCategory.Stale)
	assert.Equal(t, 1, board.Rank(logger, "alice", TotalCategory))
}

func TestScoreboardReservedCategory(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")

	assert.ErrorIs(t, board.AddCategories(logger, "total"), ErrCategoryReserved)
	assert.ErrorIs(t, board.AddCategories(logger, "Total"), ErrCategoryReserved)
}

func TestScoreboardDuplicateCategoryIgnored(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")

	require.NoError(t, board.AddCategories(logger, "Kills"))
	require.NoError(t, board.AddCategories(logger, "Kills"))
	assert.Len(t, board.CategoryNames(), 2) // Kills and TOTAL
}

func TestScoreboardNewCategoryBackfillsEntries(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.True(t, board.RegisterEntry(logger, "alice"))

	require.NoError(t, board.AddCategories(logger, "Kills"))
	score, ok := board.GetScore(logger, "alice", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(0), score.Points)
}

func TestScoreboardRecordUnknownEntryOrCategory(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills"))
	require.True(t, board.RegisterEntry(logger, "alice"))

	assert.False(t, board.RecordPoints(logger, "ghost", "Kills", 10))
	assert.False(t, board.RecordPoints(logger, "alice", "Deaths", 10))
}

func TestScoreboardStaleRankStillAnswers(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills"))
	require.True(t, board.RegisterEntry(logger, "alice"))
	require.True(t, board.RegisterEntry(logger, "bob"))

	require.True(t, board.RecordPoints(logger, "alice", "Kills", 10))
	board.Recalculate("Kills")
	require.Equal(t, 1, board.Rank(logger, "alice", "Kills"))

	// Overtake without recalculating: the cached rank still answers.
	require.True(t, board.RecordPoints(logger, "bob", "Kills", 20))
	category, ok := board.Category("Kills")
	require.True(t, ok)
	assert.True(t, category.Stale)
	assert.Equal(t, 1, board.Rank(logger, "alice", "Kills"))

	board.Recalculate("Kills")
	assert.Equal(t, 2, board.Rank(logger, "alice", "Kills"))
	assert.Equal(t, 1, board.Rank(logger, "bob", "Kills"))
}

func TestScoreboardRemoveEntry(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills"))
	require.True(t, board.RegisterEntry(logger, "alice"))
	require.True(t, board.RegisterEntry(logger, "bob"))
	require.True(t, board.RecordPoints(logger, "alice", "Kills", 10))
	board.Recalculate("Kills")

	require.True(t, board.RemoveEntry("alice"))
	assert.False(t, board.RemoveEntry("alice"))
	assert.Equal(t, 1, board.Size())
	assert.Equal(t, -1, board.Rank(logger, "alice", "Kills"))
}

func TestScoreboardJSONRoundTrip(t *testing.T) {
	logger := &mockLogger{}
	board := newScoreboard(ScoreboardUser, "arena")
	require.NoError(t, board.AddCategories(logger, "Kills"))
	require.True(t, board.RegisterEntry(logger, "alice"))
	require.True(t, board.RecordPoints(logger, "alice", "Kills", 42))
	board.Recalculate("Kills")

	data, err := board.MarshalJSON()
	require.NoError(t, err)

	restored := &Scoreboard{}
	require.NoError(t, restored.UnmarshalJSON(data))

	score, ok := restored.GetScore(logger, "alice", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(42), score.Points)

	// Ranked caches are not persisted, ranking runs again after a load.
	assert.Nil(t, restored.RankedScores("Kills"))
	restored.markAllStale()
	restored.Recalculate("Kills")
	assert.Equal(t, 1, restored.Rank(logger, "alice", "Kills"))
}
