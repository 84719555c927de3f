package rankforge

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// ScoreboardKind identifies which entity population a scoreboard ranks.
type ScoreboardKind string

const (
	ScoreboardUser  ScoreboardKind = "User"
	ScoreboardTeam  ScoreboardKind = "Team"
	ScoreboardGuild ScoreboardKind = "Guild"
)

// Scoreboard owns, for one entity kind, the map of entry scores keyed by
// category, the category set, and a cached ranked list per category.
//
// All maps are guarded by a single RWMutex per scoreboard. Operations on one
// scoreboard are atomic with respect to each other; there is no atomicity
// across scoreboards or with the ledger. A reader may observe the User
// scoreboard updated while the Team scoreboard is not yet.
type Scoreboard struct {
	mu sync.RWMutex

	kind  ScoreboardKind
	title string

	// entries maps entryID -> categoryName -> score.
	entries map[string]map[string]*Score

	categories map[string]*ScoreCategory

	// ranked holds the cached ranked list per category. It is valid only
	// while the matching category is not stale, and Recalculate is its sole
	// writer.
	ranked map[string][]*Score
}

func newScoreboard(kind ScoreboardKind, title string) *Scoreboard {
	s := &Scoreboard{
		kind:       kind,
		title:      title,
		entries:    make(map[string]map[string]*Score),
		categories: make(map[string]*ScoreCategory),
		ranked:     make(map[string][]*Score),
	}
	s.addCategoryLocked(TotalCategory)
	return s
}

// Kind returns the entity kind this scoreboard ranks.
func (s *Scoreboard) Kind() ScoreboardKind {
	return s.kind
}

// Title returns the scoreboard title.
func (s *Scoreboard) Title() string {
	return s.title
}

// AddCategories registers the named categories, creating a zero score for
// every existing entry under each new category. The reserved TOTAL name is
// rejected; names already present are skipped with a warning.
func (s *Scoreboard) AddCategories(logger runtime.Logger, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if strings.EqualFold(name, TotalCategory) {
			return ErrCategoryReserved
		}
		if _, ok := s.categories[name]; ok {
			logger.Warn("Category already exists, ignoring: %s", name)
			continue
		}
		s.addCategoryLocked(name)
	}
	return nil
}

func (s *Scoreboard) addCategoryLocked(name string) {
	s.categories[name] = NewScoreCategory(name)
	for entryID, byCategory := range s.entries {
		byCategory[name] = NewScore(entryID, name)
	}
}

// HasCategory indicates if the category exists.
func (s *Scoreboard) HasCategory(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.categories[name]
	return ok
}

// CategoryNames returns the names of every registered category, TOTAL
// included.
func (s *Scoreboard) CategoryNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	return names
}

// Category returns a copy of the named category's bookkeeping state.
func (s *Scoreboard) Category(name string) (ScoreCategory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[name]
	if !ok {
		return ScoreCategory{}, false
	}
	return *category, true
}

// RegisterEntry adds the entry with a zero score per existing category. It
// is idempotent: registering a known entry is a no-op.
func (s *Scoreboard) RegisterEntry(logger runtime.Logger, entryID string) bool {
	if entryID == "" {
		logger.Warn("No valid %s scoreboard entry id provided", s.kind)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; ok {
		return true
	}

	byCategory := make(map[string]*Score, len(s.categories))
	for name := range s.categories {
		byCategory[name] = NewScore(entryID, name)
	}
	s.entries[entryID] = byCategory
	return true
}

// RemoveEntry drops the entry and purges its scores from every ranked cache.
func (s *Scoreboard) RemoveEntry(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok {
		return false
	}
	delete(s.entries, entryID)

	for name, scores := range s.ranked {
		filtered := scores[:0]
		for _, score := range scores {
			if !score.SameEntry(entryID) {
				filtered = append(filtered, score)
			}
		}
		s.ranked[name] = filtered
	}
	return true
}

// RecordPoints adds delta to the entry's score for the category and to its
// TOTAL, marking both categories stale. The entry and category must already
// exist; otherwise the call logs and reports false.
func (s *Scoreboard) RecordPoints(logger runtime.Logger, entryID, categoryName string, delta int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCategory, ok := s.entries[entryID]
	if !ok {
		logger.Warn("Entry is not registered with %s scoreboard: %s", s.kind, entryID)
		return false
	}
	score, ok := byCategory[categoryName]
	if !ok {
		logger.Warn("Score data not found for entry %s category %s on %s scoreboard", entryID, categoryName, s.kind)
		return false
	}
	category, ok := s.categories[categoryName]
	if !ok {
		logger.Warn("%s category not found: %s", s.kind, categoryName)
		return false
	}

	score.Add(delta)
	category.markStale()

	if categoryName != TotalCategory {
		if total, ok := byCategory[TotalCategory]; ok {
			total.Add(delta)
		}
		s.categories[TotalCategory].markStale()
	}
	return true
}

// Recalculate rebuilds the ranked cache for the category if it is stale,
// then cascades to TOTAL. It snapshots whatever scores exist at iteration
// time; a mutation landing mid-sort is reflected on the next recalculation.
func (s *Scoreboard) Recalculate(categoryName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalculateLocked(categoryName)
	if categoryName != TotalCategory {
		s.recalculateLocked(TotalCategory)
	}
}

func (s *Scoreboard) recalculateLocked(categoryName string) {
	category, ok := s.categories[categoryName]
	if !ok || !category.Stale {
		return
	}

	scores := make([]*Score, 0, len(s.entries))
	for _, byCategory := range s.entries {
		if score, ok := byCategory[categoryName]; ok {
			scores = append(scores, score)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		return compareScores(scores[i], scores[j]) < 0
	})

	s.ranked[categoryName] = scores
	category.markFresh(time.Now())
}

// Rank returns the 1-based rank of the entry in the category's cached
// ranked list, or -1 if the entry or list is missing. A stale category still
// answers, with a warning, to keep reads available.
func (s *Scoreboard) Rank(logger runtime.Logger, entryID, categoryName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if category, ok := s.categories[categoryName]; !ok {
		logger.Warn("%s category not found: %s", s.kind, categoryName)
		return -1
	} else if category.Stale {
		logger.Warn("Rank is stale for category %s. It might be incorrect.", categoryName)
	}

	for i, score := range s.ranked[categoryName] {
		if score.SameEntry(entryID) {
			return i + 1
		}
	}
	return -1
}

// RankedScores returns a copy of the cached ranked list for the category,
// or nil if ranking has not run.
func (s *Scoreboard) RankedScores(categoryName string) []Score {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked, ok := s.ranked[categoryName]
	if !ok {
		return nil
	}
	out := make([]Score, len(ranked))
	for i, score := range ranked {
		out[i] = *score
	}
	return out
}

// GetScore returns a copy of the entry's score for the category.
func (s *Scoreboard) GetScore(logger runtime.Logger, entryID, categoryName string) (Score, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory, ok := s.entries[entryID]
	if !ok {
		logger.Warn("Entry is not registered with %s scoreboard: %s", s.kind, entryID)
		return Score{}, false
	}
	score, ok := byCategory[categoryName]
	if !ok {
		logger.Warn("No score found for entry %s category %s", entryID, categoryName)
		return Score{}, false
	}
	return *score, true
}

// Scores returns a copy of the entry's full per-category score map.
func (s *Scoreboard) Scores(entryID string) map[string]Score {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Score)
	for name, score := range s.entries[entryID] {
		out[name] = *score
	}
	return out
}

// Entries returns every registered entry id.
func (s *Scoreboard) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Size is the number of entries participating in this scoreboard.
func (s *Scoreboard) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// markAllStale invalidates every category so the next calculation pass
// rebuilds all ranked caches, e.g. after loading from persistence.
func (s *Scoreboard) markAllStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.categories {
		category.markStale()
	}
}

// scoreboardData is the persisted shape of a scoreboard. Ranked caches are
// deliberately not persisted; categories are re-marked stale and ranks
// recalculated after a load.
type scoreboardData struct {
	Kind       ScoreboardKind               `json:"kind"`
	Title      string                       `json:"title"`
	Entries    map[string]map[string]*Score `json:"entries"`
	Categories map[string]*ScoreCategory    `json:"categories"`
}

func (s *Scoreboard) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(&scoreboardData{
		Kind:       s.kind,
		Title:      s.title,
		Entries:    s.entries,
		Categories: s.categories,
	})
}

func (s *Scoreboard) UnmarshalJSON(data []byte) error {
	var sd scoreboardData
	if err := json.Unmarshal(data, &sd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = sd.Kind
	s.title = sd.Title
	s.entries = sd.Entries
	s.categories = sd.Categories
	if s.entries == nil {
		s.entries = make(map[string]map[string]*Score)
	}
	if s.categories == nil {
		s.categories = make(map[string]*ScoreCategory)
	}
	if _, ok := s.categories[TotalCategory]; !ok {
		s.addCategoryLocked(TotalCategory)
	}
	s.ranked = make(map[string][]*Score)
	return nil
}
