package rankforge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	ledgerStorageKey  = "leaderboard_ledger"
	serviceStorageKey = "leaderboard_service"
)

func leaderboardStorageKey(id string) string {
	return "leaderboard_" + id
}

func setStorageKey(id string) string {
	return "leaderboard_set_" + id
}

// serviceSnapshot is the persisted index of everything the system owns.
type serviceSnapshot struct {
	LeaderboardIDs []string `json:"leaderboard_ids"`
	SetIDs         []string `json:"set_ids"`
}

var _ LeaderboardsSystem = &RankforgeLeaderboardsSystem{}

// RankforgeLeaderboardsSystem is the default LeaderboardsSystem. It owns the
// leaderboard and set registries, the shared event ledger, and drives
// auto-renewal from the update path.
type RankforgeLeaderboardsSystem struct {
	config      *LeaderboardsConfig
	persistence PersistenceService
	users       UserRegistry
	zone        *time.Location

	mu           sync.RWMutex
	leaderboards map[string]*Leaderboard
	sets         map[string]*LeaderboardSet
	ledger       *Ledger
}

func NewRankforgeLeaderboardsSystem(config *LeaderboardsConfig, persistence PersistenceService, users UserRegistry) *RankforgeLeaderboardsSystem {
	zone := DefaultReferenceZone
	if config != nil && config.ReferenceOffsetHours != nil {
		hours := *config.ReferenceOffsetHours
		zone = time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*60*60)
	}
	return &RankforgeLeaderboardsSystem{
		config:       config,
		persistence:  persistence,
		users:        users,
		zone:         zone,
		leaderboards: make(map[string]*Leaderboard),
		sets:         make(map[string]*LeaderboardSet),
		ledger:       NewLedger(),
	}
}

func (s *RankforgeLeaderboardsSystem) GetType() SystemType {
	return SystemTypeLeaderboards
}

func (s *RankforgeLeaderboardsSystem) GetConfig() any {
	return s.config
}

// InitFromConfig creates the leaderboards and sets declared in the config.
func (s *RankforgeLeaderboardsSystem) InitFromConfig(logger runtime.Logger) error {
	if s.config == nil {
		return nil
	}
	now := time.Now()

	for _, lc := range s.config.Leaderboards {
		l, err := s.CreateLeaderboard(logger, lc.Title, lc.Cycle, now)
		if err != nil {
			return err
		}
		l.SetDescription(lc.Description)
		if lc.ResetCron != "" {
			l.SetResetCron(lc.ResetCron)
			l.SetWindow(now, s.zone)
		}
		if len(lc.Categories) > 0 {
			if err := l.AddCategories(logger, lc.Categories...); err != nil {
				return err
			}
		}
	}

	for _, sc := range s.config.Sets {
		set, err := s.CreateSet(logger, sc.Title, sc.Cycles, now)
		if err != nil {
			return err
		}
		if len(sc.Categories) > 0 {
			if err := s.AddCategories(logger, set.ID(), sc.Categories...); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildLeaderboard applies the configured auto flag defaults.
func (s *RankforgeLeaderboardsSystem) buildLeaderboard(title string, cycle Cycle, at time.Time) *Leaderboard {
	l := NewLeaderboard(title, cycle, at, s.zone)
	if s.config != nil {
		if s.config.DisableAutoUpdate {
			l.SetAutoUpdate(false)
		}
		if s.config.AutoPersist {
			l.SetAutoPersist(true)
		}
		if s.config.DisableAutoRenew {
			l.SetAutoRenew(false)
		}
	}
	return l
}

func (s *RankforgeLeaderboardsSystem) CreateLeaderboard(logger runtime.Logger, title string, cycle Cycle, at time.Time) (*Leaderboard, error) {
	if title == "" {
		logger.Error("Cannot create a leaderboard without a title")
		return nil, ErrBadInput
	}

	l := s.buildLeaderboard(title, cycle, at)
	s.mu.Lock()
	s.leaderboards[l.ID()] = l
	s.mu.Unlock()
	return l, nil
}

func (s *RankforgeLeaderboardsSystem) CreateSet(logger runtime.Logger, title string, cycles []Cycle, at time.Time) (*LeaderboardSet, error) {
	if title == "" {
		logger.Error("Cannot create a leaderboard set without a title")
		return nil, ErrBadInput
	}
	if len(cycles) == 0 {
		logger.Error("Cannot create leaderboard set %s without cycles", title)
		return nil, ErrBadInput
	}

	set := NewLeaderboardSet(title)
	members := make([]*Leaderboard, 0, len(cycles))
	for _, cycle := range cycles {
		members = append(members, s.buildLeaderboard(title, cycle, at))
	}
	if err := set.Add(logger, members...); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sets[set.ID()] = set
	for _, l := range members {
		s.leaderboards[l.ID()] = l
	}
	s.mu.Unlock()
	return set, nil
}

func (s *RankforgeLeaderboardsSystem) GetLeaderboard(id string) (*Leaderboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leaderboards[id]
	return l, ok
}

func (s *RankforgeLeaderboardsSystem) GetSet(id string) (*LeaderboardSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	return set, ok
}

func (s *RankforgeLeaderboardsSystem) GetLeaderboardAt(logger runtime.Logger, setID string, cycle Cycle, at time.Time) (*Leaderboard, bool) {
	set, ok := s.GetSet(setID)
	if !ok {
		logger.Warn("Leaderboard set not found: %s", setID)
		return nil, false
	}
	id := GenerateLeaderboardID(set.Title(), cycle, CycleStart(cycle, at, s.zone))
	return s.GetLeaderboard(id)
}

// resolve maps an id to the leaderboards it addresses: itself, or every
// member when the id names a set. Unknown ids warn and resolve to nothing.
func (s *RankforgeLeaderboardsSystem) resolve(logger runtime.Logger, id string) []*Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.leaderboards[id]; ok {
		return []*Leaderboard{l}
	}
	if set, ok := s.sets[id]; ok {
		members := make([]*Leaderboard, 0)
		for cycle, memberID := range set.LeaderboardIDs() {
			member, ok := s.leaderboards[memberID]
			if !ok {
				logger.Warn("Set %s references missing %s leaderboard %s", id, cycle, memberID)
				continue
			}
			members = append(members, member)
		}
		return members
	}

	logger.Warn("Leaderboard or set not found: %s", id)
	return nil
}

// singleBoard resolves an id that must address exactly one leaderboard.
func (s *RankforgeLeaderboardsSystem) singleBoard(logger runtime.Logger, id string) (*Leaderboard, bool) {
	if l, ok := s.GetLeaderboard(id); ok {
		return l, true
	}
	if _, ok := s.GetSet(id); ok {
		logger.Warn("Operation requires a leaderboard id, got set id: %s", id)
		return nil, false
	}
	logger.Warn("Leaderboard not found: %s", id)
	return nil, false
}

func (s *RankforgeLeaderboardsSystem) AddCategories(logger runtime.Logger, id string, names ...string) error {
	for _, l := range s.resolve(logger, id) {
		if err := l.AddCategories(logger, names...); err != nil {
			return err
		}
	}
	return nil
}

func (s *RankforgeLeaderboardsSystem) AddUser(logger runtime.Logger, id string, user *User) error {
	if err := s.users.Register(logger, user); err != nil {
		return err
	}
	for _, l := range s.resolve(logger, id) {
		l.RegisterUser(logger, user)
	}
	return nil
}

func (s *RankforgeLeaderboardsSystem) RemoveUser(logger runtime.Logger, id, userID string) bool {
	removed := false
	for _, l := range s.resolve(logger, id) {
		if l.RemoveUser(userID) {
			removed = true
		}
	}
	return removed
}

func (s *RankforgeLeaderboardsSystem) Update(ctx context.Context, logger runtime.Logger, id, userID string, rec Recordable) (bool, error) {
	if userID == "" || rec.CategoryName == "" {
		return false, ErrBadInput
	}
	user, ok := s.users.Get(userID)
	if !ok {
		logger.Error("Score update for unregistered user: %s", userID)
		return false, ErrUserNotRegistered
	}

	boards := s.resolve(logger, id)
	if len(boards) == 0 {
		return false, nil
	}

	at := time.Now()
	if rec.Time != nil {
		at = *rec.Time
	}

	// Renewal and activity are settled per board before the event is
	// journaled, so an event no window accepts never enters the ledger.
	active := make([]*Leaderboard, 0, len(boards))
	for _, l := range boards {
		l = s.maybeRenew(logger, l, at)
		if l.IsActive(at) {
			active = append(active, l)
		}
	}
	if len(active) == 0 {
		return false, nil
	}

	// A recordable may name a category the board has not seen yet; it is
	// created on demand so the event has somewhere to land.
	for _, l := range active {
		if l.HasCategory(rec.CategoryName) {
			continue
		}
		if err := l.AddCategories(logger, rec.CategoryName); err != nil {
			return false, err
		}
	}

	// The ledger is the dedup gate: a replayed event is dropped here before
	// any scoreboard sees it, so scoreboards and journal stay in step.
	if !s.Ledger().Add(logger, DefaultStream, userID, rec) {
		return false, nil
	}

	applied := false
	for _, l := range active {
		if l.RecordPoints(logger, user, rec.CategoryName, rec.Points) {
			applied = true
		}
		if l.AutoUpdate() {
			l.Recalculate(rec.CategoryName)
		}
		if l.AutoPersist() {
			s.Save(ctx, logger, l.ID())
		}
	}
	return applied, nil
}

// maybeRenew replaces an auto-renewing set member whose window does not
// cover at with a fresh leaderboard windowed around at. The old board keeps
// its scores but is detached from the set, and every registered user is
// seeded into the replacement. Standalone boards are never renewed.
func (s *RankforgeLeaderboardsSystem) maybeRenew(logger runtime.Logger, l *Leaderboard, at time.Time) *Leaderboard {
	if !l.AutoRenew() || l.IsActive(at) {
		return l
	}
	groupID := l.GroupID()
	if groupID == "" {
		return l
	}
	set, ok := s.GetSet(groupID)
	if !ok {
		logger.Warn("Cannot renew leaderboard %s, set %s not found", l.ID(), groupID)
		return l
	}

	replacement := s.buildLeaderboard(l.Title(), l.Cycle(), at)
	// A renewed slot keeps renewing even when the config default says new
	// boards should not.
	replacement.SetAutoRenew(true)
	replacement.SetDescription(l.Description())

	categories := make([]string, 0)
	for _, name := range l.CategoryNames() {
		if name != TotalCategory {
			categories = append(categories, name)
		}
	}
	if err := replacement.AddCategories(logger, categories...); err != nil {
		logger.Error("Failed to carry categories into renewed leaderboard %s: %v", l.ID(), err)
		return l
	}
	for _, user := range s.users.All() {
		replacement.RegisterUser(logger, user)
	}

	if err := set.Add(logger, replacement); err != nil {
		logger.Error("Failed to renew leaderboard %s: %v", l.ID(), err)
		return l
	}
	l.setGroupID("")

	s.mu.Lock()
	s.leaderboards[replacement.ID()] = replacement
	s.mu.Unlock()

	logger.Info("Renewed %s leaderboard in set %s: %s replaces %s", l.Cycle(), set.ID(), replacement.ID(), l.ID())
	return replacement
}

func (s *RankforgeLeaderboardsSystem) UpdateFromRecords(ctx context.Context, logger runtime.Logger, id string, records map[string][]LedgerEntry) (int, error) {
	applied := 0
	for userID, entries := range records {
		for _, entry := range entries {
			at := entry.Time
			ok, err := s.Update(ctx, logger, id, userID, Recordable{
				CategoryName: entry.CategoryName,
				Points:       entry.Points,
				Time:         &at,
			})
			if err != nil {
				return applied, err
			}
			if ok {
				applied++
			}
		}
	}
	return applied, nil
}

func (s *RankforgeLeaderboardsSystem) Calculate(logger runtime.Logger, id string, categories ...string) {
	for _, l := range s.resolve(logger, id) {
		if len(categories) == 0 {
			l.RecalculateAll()
			continue
		}
		for _, name := range categories {
			l.Recalculate(name)
		}
	}
}

func (s *RankforgeLeaderboardsSystem) Rank(logger runtime.Logger, id, entryID, categoryName string, kind ScoreboardKind) int {
	l, ok := s.singleBoard(logger, id)
	if !ok {
		return -1
	}
	return l.Rank(logger, entryID, categoryName, kind)
}

func (s *RankforgeLeaderboardsSystem) ListDescending(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, start, count int) ([]Score, error) {
	if start < 1 || count < 1 {
		logger.Warn("Invalid list range for leaderboard %s: start %d count %d", id, start, count)
		return []Score{}, nil
	}
	l, ok := s.singleBoard(logger, id)
	if !ok {
		return []Score{}, nil
	}

	ranked := l.RankedScores(categoryName, kind)
	if len(ranked) == 0 {
		logger.Warn("No ranked scores for category %s on leaderboard %s", categoryName, id)
		return []Score{}, nil
	}

	// The page shrinks at the edges, it never slides to stay full.
	n := len(ranked)
	from := start - 1
	if from >= n {
		from = n - 1
	}
	to := from + count
	if to > n {
		to = n
	}
	return ranked[from:to], nil
}

func (s *RankforgeLeaderboardsSystem) ListAscending(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, rank, count int) ([]Score, error) {
	if rank < 1 || count < 1 {
		logger.Warn("Invalid list range for leaderboard %s: rank %d count %d", id, rank, count)
		return []Score{}, nil
	}
	l, ok := s.singleBoard(logger, id)
	if !ok {
		return []Score{}, nil
	}

	ranked := l.RankedScores(categoryName, kind)
	if len(ranked) == 0 {
		logger.Warn("No ranked scores for category %s on leaderboard %s", categoryName, id)
		return []Score{}, nil
	}

	n := len(ranked)
	if rank > n {
		rank = n
	}
	if count > n {
		count = n
	}
	from := rank - count
	if from < 0 {
		count += from
		from = 0
	}
	to := from + count
	return ranked[from:to], nil
}

func (s *RankforgeLeaderboardsSystem) ListRanks(logger runtime.Logger, id, categoryName string, kind ScoreboardKind, entryID string, count int) ([]Score, error) {
	if entryID == "" || count < 1 {
		logger.Warn("Invalid rank neighborhood query for leaderboard %s: entry %q count %d", id, entryID, count)
		return []Score{}, nil
	}
	l, ok := s.singleBoard(logger, id)
	if !ok {
		return []Score{}, nil
	}

	ranked := l.RankedScores(categoryName, kind)
	if len(ranked) == 0 {
		logger.Warn("No ranked scores for category %s on leaderboard %s", categoryName, id)
		return []Score{}, nil
	}

	rank := l.Rank(logger, entryID, categoryName, kind) - 1
	if rank < 1 {
		logger.Warn("No ranked neighborhood for entry %s in category %s", entryID, categoryName)
		return []Score{}, nil
	}

	n := len(ranked)
	if rank > n {
		rank = n
	}
	if count > n {
		count = n
	}
	from := rank - count
	if from < 0 {
		count += from
		from = 0
	}
	to := rank + count
	if to > n {
		to = n
	}
	return ranked[from:to], nil
}

func (s *RankforgeLeaderboardsSystem) Merge(ctx context.Context, logger runtime.Logger, sourceID, targetID string) error {
	source, ok := s.mergeBoard(ctx, logger, sourceID)
	if !ok {
		return ErrBadInput
	}
	target, ok := s.mergeBoard(ctx, logger, targetID)
	if !ok {
		return ErrBadInput
	}

	for _, name := range source.CategoryNames() {
		if name == TotalCategory || target.HasCategory(name) {
			continue
		}
		if err := target.AddCategories(logger, name); err != nil {
			return err
		}
	}

	// Merge touches user entries only. Team and guild aggregates belong to
	// the target's own population and are not recombined.
	board := target.Scoreboard(ScoreboardUser)
	for _, userID := range source.Users() {
		board.RegisterEntry(logger, userID)
		for name, score := range source.Scores(userID) {
			if name == TotalCategory || score.Points == 0 {
				continue
			}
			board.RecordPoints(logger, userID, name, score.Points)
		}
	}

	target.RecalculateAll()
	return nil
}

// mergeBoard resolves a merge operand: the in-memory registry first, then
// the persisted store, so a board saved in an earlier session can be merged
// without an explicit Load.
func (s *RankforgeLeaderboardsSystem) mergeBoard(ctx context.Context, logger runtime.Logger, id string) (*Leaderboard, bool) {
	if l, ok := s.GetLeaderboard(id); ok {
		return l, true
	}
	if _, ok := s.GetSet(id); ok {
		logger.Warn("Operation requires a leaderboard id, got set id: %s", id)
		return nil, false
	}
	return s.Load(ctx, logger, id)
}

func (s *RankforgeLeaderboardsSystem) Save(ctx context.Context, logger runtime.Logger, id string) bool {
	boards := s.resolve(logger, id)
	if len(boards) == 0 {
		return false
	}

	ok := true
	for _, l := range boards {
		if !s.persistence.SaveValue(ctx, logger, ResourceLeaderboard, leaderboardStorageKey(l.ID()), l) {
			ok = false
		}
	}
	if set, found := s.GetSet(id); found {
		if !s.persistence.SaveValue(ctx, logger, ResourceLeaderboardSet, setStorageKey(set.ID()), set) {
			ok = false
		}
	}
	if !s.persistence.SaveValue(ctx, logger, ResourceLedger, ledgerStorageKey, s.Ledger()) {
		ok = false
	}
	return ok
}

func (s *RankforgeLeaderboardsSystem) Load(ctx context.Context, logger runtime.Logger, id string) (*Leaderboard, bool) {
	value := s.persistence.LoadValue(ctx, logger, ResourceLeaderboard, leaderboardStorageKey(id))
	l, ok := value.(*Leaderboard)
	if !ok {
		logger.Warn("No persisted leaderboard found: %s", id)
		return nil, false
	}

	s.mu.Lock()
	s.leaderboards[l.ID()] = l
	s.mu.Unlock()

	s.loadLedger(ctx, logger)

	l.markAllStale()
	l.RecalculateAll()
	return l, true
}

func (s *RankforgeLeaderboardsSystem) loadLedger(ctx context.Context, logger runtime.Logger) {
	value := s.persistence.LoadValue(ctx, logger, ResourceLedger, ledgerStorageKey)
	ledger, ok := value.(*Ledger)
	if !ok {
		return
	}
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()
}

func (s *RankforgeLeaderboardsSystem) SaveAll(ctx context.Context, logger runtime.Logger) bool {
	s.mu.RLock()
	snapshot := &serviceSnapshot{
		LeaderboardIDs: make([]string, 0, len(s.leaderboards)),
		SetIDs:         make([]string, 0, len(s.sets)),
	}
	boards := make([]*Leaderboard, 0, len(s.leaderboards))
	sets := make([]*LeaderboardSet, 0, len(s.sets))
	for id, l := range s.leaderboards {
		snapshot.LeaderboardIDs = append(snapshot.LeaderboardIDs, id)
		boards = append(boards, l)
	}
	for id, set := range s.sets {
		snapshot.SetIDs = append(snapshot.SetIDs, id)
		sets = append(sets, set)
	}
	s.mu.RUnlock()

	ok := true
	for _, l := range boards {
		if !s.persistence.SaveValue(ctx, logger, ResourceLeaderboard, leaderboardStorageKey(l.ID()), l) {
			ok = false
		}
	}
	for _, set := range sets {
		if !s.persistence.SaveValue(ctx, logger, ResourceLeaderboardSet, setStorageKey(set.ID()), set) {
			ok = false
		}
	}
	if !s.persistence.SaveValue(ctx, logger, ResourceLedger, ledgerStorageKey, s.Ledger()) {
		ok = false
	}
	if !s.persistence.SaveValue(ctx, logger, ResourceService, serviceStorageKey, snapshot) {
		ok = false
	}
	return ok
}

func (s *RankforgeLeaderboardsSystem) LoadAll(ctx context.Context, logger runtime.Logger) bool {
	value := s.persistence.LoadValue(ctx, logger, ResourceService, serviceStorageKey)
	snapshot, ok := value.(*serviceSnapshot)
	if !ok {
		logger.Warn("No persisted leaderboard service snapshot found")
		return false
	}

	for _, id := range snapshot.SetIDs {
		value := s.persistence.LoadValue(ctx, logger, ResourceLeaderboardSet, setStorageKey(id))
		set, ok := value.(*LeaderboardSet)
		if !ok {
			logger.Warn("Persisted leaderboard set missing: %s", id)
			continue
		}
		s.mu.Lock()
		s.sets[set.ID()] = set
		s.mu.Unlock()
	}

	for _, id := range snapshot.LeaderboardIDs {
		value := s.persistence.LoadValue(ctx, logger, ResourceLeaderboard, leaderboardStorageKey(id))
		l, ok := value.(*Leaderboard)
		if !ok {
			logger.Warn("Persisted leaderboard missing: %s", id)
			continue
		}
		s.mu.Lock()
		s.leaderboards[l.ID()] = l
		s.mu.Unlock()
		l.markAllStale()
		l.RecalculateAll()
	}

	s.loadLedger(ctx, logger)
	return true
}

func (s *RankforgeLeaderboardsSystem) Ledger() *Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}
