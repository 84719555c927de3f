package rankforge

import (
	"context"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// LeaderboardsConfig is the data definition for a LeaderboardsSystem type.
type LeaderboardsConfig struct {
	// ReferenceOffsetHours overrides the fixed UTC offset every window
	// computation is anchored to. Defaults to -7. Wall-clock local time is
	// never used.
	ReferenceOffsetHours *int `json:"reference_offset_hours,omitempty"`

	// Defaults applied to leaderboards created through this system.
	DisableAutoUpdate bool `json:"disable_auto_update,omitempty"`
	AutoPersist       bool `json:"auto_persist,omitempty"`
	DisableAutoRenew  bool `json:"disable_auto_renew,omitempty"`

	Leaderboards []*LeaderboardsConfigLeaderboard `json:"leaderboards,omitempty"`
	Sets         []*LeaderboardsConfigSet         `json:"sets,omitempty"`
}

// LeaderboardsConfigLeaderboard describes a standalone leaderboard created
// at system init.
type LeaderboardsConfigLeaderboard struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Cycle       Cycle    `json:"cycle,omitempty"`
	ResetCron   string   `json:"reset_cron,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// LeaderboardsConfigSet describes a leaderboard set created at system init,
// one member per listed cycle.
type LeaderboardsConfigSet struct {
	Title      string   `json:"title,omitempty"`
	Cycles     []Cycle  `json:"cycles,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// The LeaderboardsSystem manages leaderboards, sets and the shared event
// ledger. An id argument may name either a leaderboard or a set; a set id
// fans the operation out to every member.
type LeaderboardsSystem interface {
	System

	// CreateLeaderboard creates and registers a standalone leaderboard
	// whose window covers at.
	CreateLeaderboard(logger runtime.Logger, title string, cycle Cycle, at time.Time) (*Leaderboard, error)

	// CreateSet creates a set with one member leaderboard per cycle, all
	// windowed around at.
	CreateSet(logger runtime.Logger, title string, cycles []Cycle, at time.Time) (*LeaderboardSet, error)

	// GetLeaderboard returns the registered leaderboard with the id.
	GetLeaderboard(id string) (*Leaderboard, bool)

	// GetSet returns the registered set with the id.
	GetSet(id string) (*LeaderboardSet, bool)

	// GetLeaderboardAt resolves the set member that covered at for the
	// cycle, using the structured historical id.
	GetLeaderboardAt(logger runtime.Logger, setID string, cycle Cycle, at time.Time) (*Leaderboard, bool)

	// AddCategories registers score categories on the leaderboard or set.
	AddCategories(logger runtime.Logger, id string, names ...string) error

	// AddUser registers the user with the user registry and creates its
	// entries on the leaderboard or set.
	AddUser(logger runtime.Logger, id string, user *User) error

	// RemoveUser removes the user's entry from the user scoreboards of the
	// leaderboard or set. Team and guild aggregates are left untouched.
	RemoveUser(logger runtime.Logger, id, userID string) bool

	// Update journals the scoring event and applies it to the leaderboard
	// or set, creating the event's category on demand. It reports false
	// without error when no active window accepted the event, and fails
	// when the user was never registered.
	Update(ctx context.Context, logger runtime.Logger, id, userID string, rec Recordable) (bool, error)

	// UpdateFromRecords replays previously exported ledger records, keyed
	// by user id. Exact-timestamp duplicates are ignored, making replays
	// idempotent.
	UpdateFromRecords(ctx context.Context, logger runtime.Logger, id string, records map[string][]LedgerEntry) (int, error)

	// Calculate refreshes ranked caches for the named categories, or every
	// category when none are named.
	Calculate(logger runtime.Logger, id string, categories ...string)

	// Rank returns the entry's 1-based rank, or -1 when unranked.
	Rank(logger runtime.Logger, id, entryID, categoryName string, kind ScoreboardKind) int

	// ListDescending pages the ranked list from the 1-based start rank,
	// best first. Out-of-range pages clamp, they never slide; an invalid
	// start or count logs and returns an empty list.
	ListDescending(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, start, count int) ([]Score, error)

	// ListAscending returns up to count entries ending at the 1-based rank,
	// in ascending rank order. An invalid rank or count logs and returns an
	// empty list.
	ListAscending(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, rank, count int) ([]Score, error)

	// ListRanks returns up to count entries on each side of the entry's
	// rank, best first, the entry included. An invalid entry id or count
	// logs and returns an empty list.
	ListRanks(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, entryID string, count int) ([]Score, error)

	// Merge folds the source leaderboard's user scores into the target,
	// summing shared users per category. Either side is loaded from
	// persistence when it is not in memory. The source is left untouched.
	Merge(ctx context.Context, logger runtime.Logger, sourceID, targetID string) error

	// Save persists the leaderboard and the ledger.
	Save(ctx context.Context, logger runtime.Logger, id string) bool

	// Load restores the leaderboard and the ledger from persistence and
	// recalculates every ranked cache.
	Load(ctx context.Context, logger runtime.Logger, id string) (*Leaderboard, bool)

	// SaveAll snapshots every leaderboard, set, the ledger and the service
	// index.
	SaveAll(ctx context.Context, logger runtime.Logger) bool

	// LoadAll restores the service from its snapshot.
	LoadAll(ctx context.Context, logger runtime.Logger) bool

	// Ledger exposes the shared event ledger.
	Ledger() *Ledger
}
