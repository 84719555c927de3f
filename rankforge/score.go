package rankforge

import (
	"strings"
	"time"
)

// TotalCategory is the reserved category aggregating every other category's
// points per entry. It exists on every scoreboard and cannot be created by
// callers.
const TotalCategory = "TOTAL"

// Score is a single (entry, category, points) tuple. Two scores are
// considered the same entry when their entry ids match case-insensitively.
type Score struct {
	EntryID      string `json:"entry_id"`
	CategoryName string `json:"category_name"`
	Points       int64  `json:"points"`
}

// NewScore returns a zero score for the given entry and category.
func NewScore(entryID, categoryName string) *Score {
	return &Score{EntryID: entryID, CategoryName: categoryName}
}

// Add accumulates points. Integer overflow is an accepted non-goal.
func (s *Score) Add(points int64) {
	s.Points += points
}

// SameEntry reports whether the score belongs to the entry id, compared
// case-insensitively.
func (s *Score) SameEntry(entryID string) bool {
	return strings.EqualFold(s.EntryID, entryID)
}

// compareScores is the strict total order used for ranking: points
// descending, ties broken by entry id ascending. Rank is the position in the
// sorted list plus one.
func compareScores(a, b *Score) int {
	if a.Points > b.Points {
		return -1
	}
	if a.Points < b.Points {
		return 1
	}
	return strings.Compare(a.EntryID, b.EntryID)
}

// ScoreCategory tracks whether the ranked cache for a category is out of
// date relative to its underlying scores.
type ScoreCategory struct {
	Name         string     `json:"name"`
	Stale        bool       `json:"stale"`
	CalculatedAt *time.Time `json:"calculated_at,omitempty"`
}

// NewScoreCategory creates a category. New categories start stale because no
// ranking has run yet.
func NewScoreCategory(name string) *ScoreCategory {
	return &ScoreCategory{Name: name, Stale: true}
}

func (c *ScoreCategory) markStale() {
	c.Stale = true
}

func (c *ScoreCategory) markFresh(at time.Time) {
	c.Stale = false
	c.CalculatedAt = &at
}
