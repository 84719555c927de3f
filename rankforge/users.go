package rankforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NoTeam is the sentinel team or guild name for users that belong to none.
// Users carrying it get no entry on the corresponding scoreboard.
const NoTeam = "NO_TEAM"

// User is the participant record consumed by leaderboards. Team and guild
// scoreboard entries are keyed by name, so a rename orphans prior history.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	TeamName    string `json:"team_name,omitempty"`
	GuildName   string `json:"guild_name,omitempty"`
}

// entryID resolves which id the user contributes to a scoreboard of the
// given kind, or "" when the user does not participate on it.
func (u *User) entryID(kind ScoreboardKind) string {
	switch kind {
	case ScoreboardTeam:
		if u.TeamName == "" || u.TeamName == NoTeam {
			return ""
		}
		return u.TeamName
	case ScoreboardGuild:
		if u.GuildName == "" || u.GuildName == NoTeam {
			return ""
		}
		return u.GuildName
	default:
		return u.ID
	}
}

// UserRegistry is the collaborator answering which users exist. Score
// updates for users it has never seen are rejected as a precondition
// violation rather than silently creating entries.
type UserRegistry interface {
	System

	// Register adds or replaces the user.
	Register(logger runtime.Logger, user *User) error

	// IsRegistered reports whether the user id is known.
	IsRegistered(userID string) bool

	// Get returns a copy of the user record.
	Get(userID string) (*User, bool)

	// All returns a copy of every registered user.
	All() []*User

	// Save snapshots the registry through the persistence service.
	Save(ctx context.Context, logger runtime.Logger) bool

	// Load restores the registry from its persisted snapshot.
	Load(ctx context.Context, logger runtime.Logger) bool
}
