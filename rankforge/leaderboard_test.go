package rankforge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardIsActiveExclusiveBounds(t *testing.T) {
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, DefaultReferenceZone)
	l := NewLeaderboard("arena", CycleDaily, at, nil)
	window := l.Window()

	assert.False(t, l.IsActive(window.Start))
	assert.True(t, l.IsActive(window.Start.Add(time.Second)))
	assert.True(t, l.IsActive(window.End.Add(-time.Second)))
	assert.False(t, l.IsActive(window.End))
	assert.False(t, l.IsActive(window.End.Add(time.Hour)))
}

func TestLeaderboardDefaults(t *testing.T) {
	l := NewLeaderboard("arena", CycleWeekly, time.Now(), nil)

	assert.NotEmpty(t, l.ID())
	assert.True(t, l.AutoUpdate())
	assert.False(t, l.AutoPersist())
	assert.True(t, l.AutoRenew())
	assert.Empty(t, l.GroupID())
	assert.True(t, l.HasCategory(TotalCategory))
}

func TestLeaderboardNoTeamSkipsScoreboards(t *testing.T) {
	logger := &mockLogger{}
	l := NewLeaderboard("arena", CycleDaily, time.Now(), nil)
	require.NoError(t, l.AddCategories(logger, "Kills"))

	loner := &User{ID: "u1", TeamName: NoTeam, GuildName: "dragons"}
	l.RegisterUser(logger, loner)

	assert.Equal(t, 1, l.Scoreboard(ScoreboardUser).Size())
	assert.Equal(t, 0, l.Scoreboard(ScoreboardTeam).Size())
	assert.Equal(t, 1, l.Scoreboard(ScoreboardGuild).Size())
}

func TestLeaderboardRecordPointsFansOut(t *testing.T) {
	logger := &mockLogger{}
	l := NewLeaderboard("arena", CycleDaily, time.Now(), nil)
	require.NoError(t, l.AddCategories(logger, "Kills"))

	u1 := &User{ID: "u1", TeamName: "red", GuildName: "dragons"}
	u2 := &User{ID: "u2", TeamName: "red"}
	l.RegisterUser(logger, u1)
	l.RegisterUser(logger, u2)

	require.True(t, l.RecordPoints(logger, u1, "Kills", 10))
	require.True(t, l.RecordPoints(logger, u2, "Kills", 5))

	// Team aggregates across both members, the guild sees only u1.
	teamScore, ok := l.Scoreboard(ScoreboardTeam).GetScore(logger, "red", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(15), teamScore.Points)

	guildScore, ok := l.Scoreboard(ScoreboardGuild).GetScore(logger, "dragons", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(10), guildScore.Points)
}

func TestLeaderboardRemoveUserKeepsAggregates(t *testing.T) {
	logger := &mockLogger{}
	l := NewLeaderboard("arena", CycleDaily, time.Now(), nil)
	require.NoError(t, l.AddCategories(logger, "Kills"))

	u1 := &User{ID: "u1", TeamName: "red"}
	l.RegisterUser(logger, u1)
	require.True(t, l.RecordPoints(logger, u1, "Kills", 10))

	require.True(t, l.RemoveUser("u1"))
	assert.Equal(t, 0, l.Scoreboard(ScoreboardUser).Size())

	teamScore, ok := l.Scoreboard(ScoreboardTeam).GetScore(logger, "red", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(10), teamScore.Points)
}

func TestLeaderboardSetAddRewritesIDs(t *testing.T) {
	logger := &mockLogger{}
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, DefaultReferenceZone)

	set := NewLeaderboardSet("arena")
	daily := NewLeaderboard("arena", CycleDaily, at, nil)
	weekly := NewLeaderboard("arena", CycleWeekly, at, nil)
	require.NoError(t, set.Add(logger, daily, weekly))

	assert.Equal(t, "arena_Daily_05-15-2024", daily.ID())
	assert.Equal(t, "arena_Weekly_05-12-2024", weekly.ID())
	assert.Equal(t, set.ID(), daily.GroupID())

	id, ok := set.LeaderboardID(CycleDaily)
	require.True(t, ok)
	assert.Equal(t, daily.ID(), id)
}

func TestLeaderboardSetRejectsTitleMismatch(t *testing.T) {
	logger := &mockLogger{}
	set := NewLeaderboardSet("arena")
	other := NewLeaderboard("dungeon", CycleDaily, time.Now(), nil)

	assert.ErrorIs(t, set.Add(logger, other), ErrSetTitleMismatch)
}

func TestLeaderboardJSONRoundTrip(t *testing.T) {
	logger := &mockLogger{}
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, DefaultReferenceZone)
	l := NewLeaderboard("arena", CycleDaily, at, nil)
	require.NoError(t, l.AddCategories(logger, "Kills"))
	u1 := &User{ID: "u1", TeamName: "red"}
	l.RegisterUser(logger, u1)
	require.True(t, l.RecordPoints(logger, u1, "Kills", 7))

	data, err := l.MarshalJSON()
	require.NoError(t, err)

	restored := &Leaderboard{}
	require.NoError(t, restored.UnmarshalJSON(data))

	assert.Equal(t, l.ID(), restored.ID())
	assert.Equal(t, CycleDaily, restored.Cycle())
	assert.Equal(t, l.Window().Start.Unix(), restored.Window().Start.Unix())

	score, ok := restored.GetScore(logger, "u1", "Kills")
	require.True(t, ok)
	assert.Equal(t, int64(7), score.Points)
	total, ok := restored.GetScoreTotal(logger, "u1")
	require.True(t, ok)
	assert.Equal(t, int64(7), total.Points)
}
