package rankforge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// GenerateLeaderboardID builds the structured id a leaderboard carries once
// it joins a set. The date component is the window start, so historical
// cycles can be addressed deterministically.
func GenerateLeaderboardID(title string, cycle Cycle, windowStart time.Time) string {
	return fmt.Sprintf("%s_%s_%s", title, cycle, windowStart.Format("01-02-2006"))
}

// LeaderboardSet groups one leaderboard per cycle under a shared title.
// The set id is the title itself, and members are re-keyed to structured
// ids on admission.
type LeaderboardSet struct {
	mu sync.RWMutex

	id    string
	title string

	// leaderboardIDs maps each cycle to the id of its current member.
	leaderboardIDs map[Cycle]string
}

// NewLeaderboardSet creates an empty set for the title.
func NewLeaderboardSet(title string) *LeaderboardSet {
	return &LeaderboardSet{
		id:             title,
		title:          title,
		leaderboardIDs: make(map[Cycle]string),
	}
}

func (s *LeaderboardSet) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *LeaderboardSet) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// Add admits the leaderboards into the set. Each must carry the set's
// title; on admission its id is rewritten to the structured form and its
// group id is pointed at this set. A member already holding the cycle slot
// is replaced with a warning.
func (s *LeaderboardSet) Add(logger runtime.Logger, leaderboards ...*Leaderboard) error {
	for _, l := range leaderboards {
		if l.Title() != s.Title() {
			logger.Error("Leaderboard title %q does not match set title %q", l.Title(), s.Title())
			return ErrSetTitleMismatch
		}

		l.setID(GenerateLeaderboardID(l.Title(), l.Cycle(), l.Window().Start))
		l.setGroupID(s.ID())

		s.mu.Lock()
		if prev, ok := s.leaderboardIDs[l.Cycle()]; ok && prev != l.ID() {
			logger.Warn("Replacing %s leaderboard %s in set %s with %s", l.Cycle(), prev, s.id, l.ID())
		}
		s.leaderboardIDs[l.Cycle()] = l.ID()
		s.mu.Unlock()
	}
	return nil
}

// LeaderboardID returns the id of the member holding the cycle slot.
func (s *LeaderboardSet) LeaderboardID(cycle Cycle) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.leaderboardIDs[cycle]
	return id, ok
}

// LeaderboardIDs returns a copy of the cycle to member id mapping.
func (s *LeaderboardSet) LeaderboardIDs() map[Cycle]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Cycle]string, len(s.leaderboardIDs))
	for cycle, id := range s.leaderboardIDs {
		out[cycle] = id
	}
	return out
}

// replace swaps the member id for the cycle, used by auto-renewal.
func (s *LeaderboardSet) replace(cycle Cycle, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboardIDs[cycle] = id
}

type leaderboardSetData struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	LeaderboardIDs map[Cycle]string `json:"leaderboard_ids"`
}

func (s *LeaderboardSet) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(&leaderboardSetData{
		ID:             s.id,
		Title:          s.title,
		LeaderboardIDs: s.leaderboardIDs,
	})
}

func (s *LeaderboardSet) UnmarshalJSON(data []byte) error {
	var sd leaderboardSetData
	if err := json.Unmarshal(data, &sd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = sd.ID
	s.title = sd.Title
	s.leaderboardIDs = sd.LeaderboardIDs
	if s.leaderboardIDs == nil {
		s.leaderboardIDs = make(map[Cycle]string)
	}
	return nil
}
