package rankforge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// Leaderboard is one competition instance: a user, a team and a guild
// scoreboard sharing a category set, bounded by an active time window
// derived from its cycle.
type Leaderboard struct {
	mu sync.RWMutex

	id          string
	title       string
	description string
	cycle       Cycle

	// resetCron optionally overrides the Custom cycle window end with the
	// next fire of this cron expression.
	resetCron string

	window  TimeWindow
	groupID string

	autoUpdate  bool
	autoPersist bool
	autoRenew   bool

	scoreboards map[ScoreboardKind]*Scoreboard
}

// NewLeaderboard creates a leaderboard with a generated id, the three
// scoreboards, and the window covering at. A nil zone uses the default
// reference zone.
func NewLeaderboard(title string, cycle Cycle, at time.Time, zone *time.Location) *Leaderboard {
	l := &Leaderboard{
		id:         uuid.New().String(),
		title:      title,
		cycle:      cycle,
		autoUpdate: true,
		autoRenew:  true,
		scoreboards: map[ScoreboardKind]*Scoreboard{
			ScoreboardUser:  newScoreboard(ScoreboardUser, title),
			ScoreboardTeam:  newScoreboard(ScoreboardTeam, title),
			ScoreboardGuild: newScoreboard(ScoreboardGuild, title),
		},
	}
	l.window = CycleWindow(cycle, at, zone)
	return l
}

func (l *Leaderboard) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

func (l *Leaderboard) Title() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.title
}

func (l *Leaderboard) Description() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.description
}

func (l *Leaderboard) SetDescription(description string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.description = description
}

func (l *Leaderboard) Cycle() Cycle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cycle
}

func (l *Leaderboard) Window() TimeWindow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.window
}

// GroupID is the id of the set this leaderboard belongs to, or "" when it
// stands alone or was detached by auto-renewal.
func (l *Leaderboard) GroupID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.groupID
}

func (l *Leaderboard) AutoUpdate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.autoUpdate
}

func (l *Leaderboard) SetAutoUpdate(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoUpdate = v
}

func (l *Leaderboard) AutoPersist() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.autoPersist
}

func (l *Leaderboard) SetAutoPersist(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoPersist = v
}

func (l *Leaderboard) AutoRenew() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.autoRenew
}

func (l *Leaderboard) SetAutoRenew(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoRenew = v
}

func (l *Leaderboard) SetResetCron(cronexpr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetCron = cronexpr
}

func (l *Leaderboard) setID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
}

func (l *Leaderboard) setGroupID(groupID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groupID = groupID
}

// SetWindow recomputes the window for the cycle around at. A Custom cycle
// with a reset cron expression ends at the next cron fire minus one second.
func (l *Leaderboard) SetWindow(at time.Time, zone *time.Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cycle == CycleCustom && l.resetCron != "" {
		window, err := cycleWindowCron(at, l.resetCron, zone)
		if err == nil {
			l.window = window
			return
		}
	}
	l.window = CycleWindow(l.cycle, at, zone)
}

// IsActive reports whether t falls strictly inside the window. Both the
// start and end instants themselves count as inactive.
func (l *Leaderboard) IsActive(t time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return t.After(l.window.Start) && t.Before(l.window.End)
}

// Scoreboard returns the scoreboard for the given kind.
func (l *Leaderboard) Scoreboard(kind ScoreboardKind) *Scoreboard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scoreboards[kind]
}

// AddCategories registers the categories on all three scoreboards.
func (l *Leaderboard) AddCategories(logger runtime.Logger, names ...string) error {
	for _, board := range l.boards() {
		if err := board.AddCategories(logger, names...); err != nil {
			return err
		}
	}
	return nil
}

// HasCategory checks the user scoreboard; categories are always added to
// all three boards together.
func (l *Leaderboard) HasCategory(name string) bool {
	return l.Scoreboard(ScoreboardUser).HasCategory(name)
}

// CategoryNames lists the categories registered on this leaderboard.
func (l *Leaderboard) CategoryNames() []string {
	return l.Scoreboard(ScoreboardUser).CategoryNames()
}

// RegisterUser creates zero-score entries for the user on every scoreboard
// it participates in. Idempotent.
func (l *Leaderboard) RegisterUser(logger runtime.Logger, user *User) {
	for kind, board := range l.scoreboardsByKind() {
		if entryID := user.entryID(kind); entryID != "" {
			board.RegisterEntry(logger, entryID)
		}
	}
}

// RemoveUser removes the user's entry from the user scoreboard only. Team
// and guild entries are shared aggregates and survive member removal.
func (l *Leaderboard) RemoveUser(userID string) bool {
	return l.Scoreboard(ScoreboardUser).RemoveEntry(userID)
}

// RecordPoints applies the delta for the user on every scoreboard it
// participates in. Reports whether the user scoreboard accepted it.
func (l *Leaderboard) RecordPoints(logger runtime.Logger, user *User, categoryName string, points int64) bool {
	ok := false
	for kind, board := range l.scoreboardsByKind() {
		entryID := user.entryID(kind)
		if entryID == "" {
			continue
		}
		accepted := board.RecordPoints(logger, entryID, categoryName, points)
		if kind == ScoreboardUser {
			ok = accepted
		}
	}
	return ok
}

// Recalculate refreshes the ranked cache for the category on all boards.
func (l *Leaderboard) Recalculate(categoryName string) {
	for _, board := range l.boards() {
		board.Recalculate(categoryName)
	}
}

// RecalculateAll refreshes every category on every board.
func (l *Leaderboard) RecalculateAll() {
	for _, board := range l.boards() {
		for _, name := range board.CategoryNames() {
			board.Recalculate(name)
		}
	}
}

// GetScore returns the user's score for the category from the user
// scoreboard.
func (l *Leaderboard) GetScore(logger runtime.Logger, userID, categoryName string) (Score, bool) {
	return l.Scoreboard(ScoreboardUser).GetScore(logger, userID, categoryName)
}

// GetScoreTotal returns the user's aggregated TOTAL score.
func (l *Leaderboard) GetScoreTotal(logger runtime.Logger, userID string) (Score, bool) {
	return l.Scoreboard(ScoreboardUser).GetScore(logger, userID, TotalCategory)
}

// Scores returns the user's per-category score map from the user scoreboard.
func (l *Leaderboard) Scores(userID string) map[string]Score {
	return l.Scoreboard(ScoreboardUser).Scores(userID)
}

// RankedScores returns the ranked list for the category on the given kind's
// scoreboard.
func (l *Leaderboard) RankedScores(categoryName string, kind ScoreboardKind) []Score {
	return l.Scoreboard(kind).RankedScores(categoryName)
}

// Rank returns the entry's 1-based rank on the given kind's scoreboard.
func (l *Leaderboard) Rank(logger runtime.Logger, entryID, categoryName string, kind ScoreboardKind) int {
	return l.Scoreboard(kind).Rank(logger, entryID, categoryName)
}

// Users returns the ids registered on the user scoreboard.
func (l *Leaderboard) Users() []string {
	return l.Scoreboard(ScoreboardUser).Entries()
}

// Size is the number of users registered on the user scoreboard.
func (l *Leaderboard) Size() int {
	return l.Scoreboard(ScoreboardUser).Size()
}

// markAllStale invalidates every category on every board after a load.
func (l *Leaderboard) markAllStale() {
	for _, board := range l.boards() {
		board.markAllStale()
	}
}

func (l *Leaderboard) boards() []*Scoreboard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	boards := make([]*Scoreboard, 0, len(l.scoreboards))
	for _, board := range l.scoreboards {
		boards = append(boards, board)
	}
	return boards
}

func (l *Leaderboard) scoreboardsByKind() map[ScoreboardKind]*Scoreboard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[ScoreboardKind]*Scoreboard, len(l.scoreboards))
	for kind, board := range l.scoreboards {
		out[kind] = board
	}
	return out
}

type leaderboardData struct {
	ID          string                         `json:"id"`
	Title       string                         `json:"title"`
	Description string                         `json:"description,omitempty"`
	Cycle       Cycle                          `json:"cycle"`
	ResetCron   string                         `json:"reset_cron,omitempty"`
	Window      TimeWindow                     `json:"window"`
	GroupID     string                         `json:"group_id,omitempty"`
	AutoUpdate  bool                           `json:"auto_update"`
	AutoPersist bool                           `json:"auto_persist"`
	AutoRenew   bool                           `json:"auto_renew"`
	Scoreboards map[ScoreboardKind]*Scoreboard `json:"scoreboards"`
}

func (l *Leaderboard) MarshalJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return json.Marshal(&leaderboardData{
		ID:          l.id,
		Title:       l.title,
		Description: l.description,
		Cycle:       l.cycle,
		ResetCron:   l.resetCron,
		Window:      l.window,
		GroupID:     l.groupID,
		AutoUpdate:  l.autoUpdate,
		AutoPersist: l.autoPersist,
		AutoRenew:   l.autoRenew,
		Scoreboards: l.scoreboards,
	})
}

func (l *Leaderboard) UnmarshalJSON(data []byte) error {
	var ld leaderboardData
	if err := json.Unmarshal(data, &ld); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = ld.ID
	l.title = ld.Title
	l.description = ld.Description
	l.cycle = ld.Cycle
	l.resetCron = ld.ResetCron
	l.window = ld.Window
	l.groupID = ld.GroupID
	l.autoUpdate = ld.AutoUpdate
	l.autoPersist = ld.AutoPersist
	l.autoRenew = ld.AutoRenew
	l.scoreboards = ld.Scoreboards
	if l.scoreboards == nil {
		l.scoreboards = make(map[ScoreboardKind]*Scoreboard)
	}
	for _, kind := range []ScoreboardKind{ScoreboardUser, ScoreboardTeam, ScoreboardGuild} {
		if _, ok := l.scoreboards[kind]; !ok {
			l.scoreboards[kind] = newScoreboard(kind, l.title)
		}
	}
	return nil
}
