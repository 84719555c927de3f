package rankforge

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// DefaultStream is the ledger stream used when callers do not name one.
const DefaultStream = "DefaultRecords"

// Recordable is one scoring event: a category, a point delta and the moment
// it happened. A nil Time is filled with the current time on ingestion.
type Recordable struct {
	CategoryName string     `json:"category_name"`
	Points       int64      `json:"points"`
	Time         *time.Time `json:"time,omitempty"`
}

// LedgerEntry is a fully resolved ledger record as read back out.
type LedgerEntry struct {
	CategoryName string    `json:"category_name"`
	Points       int64     `json:"points"`
	Time         time.Time `json:"time"`
}

// recordableKey identifies a (category, points) pair in the dedup table.
// Category names compare case-insensitively.
type recordableKey struct {
	CategoryName string `json:"category_name"`
	Points       int64  `json:"points"`
}

func (k recordableKey) matches(name string, points int64) bool {
	return k.Points == points && strings.EqualFold(k.CategoryName, name)
}

// Ledger is the deduplicating event journal of one leaderboard. Records are
// grouped by stream, then entry id, then a shared (category, points) dedup
// table index, with the list of timestamps each pair occurred at. An event
// with an exactly repeated timestamp for the same pair is ignored, which is
// what makes replays of the same real-world event idempotent.
type Ledger struct {
	mu sync.Mutex

	id string

	// recordables is the dedup table shared by all streams.
	recordables []recordableKey

	// streams maps stream -> entryID -> recordable index -> timestamps.
	streams map[string]map[string]map[int][]time.Time
}

// NewLedger creates an empty ledger with a generated id.
func NewLedger() *Ledger {
	return &Ledger{
		id:      uuid.New().String(),
		streams: make(map[string]map[string]map[int][]time.Time),
	}
}

func (l *Ledger) ID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

func (l *Ledger) setID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
}

// Add journals the recordable for the entry on the stream. It reports false
// for an invalid recordable or an exact-timestamp duplicate. A nil time is
// replaced with the current time, which cannot be deduplicated on replay.
func (l *Ledger) Add(logger runtime.Logger, stream, entryID string, rec Recordable) bool {
	if rec.CategoryName == "" {
		logger.Warn("Cannot record ledger event without a category name")
		return false
	}
	if entryID == "" {
		logger.Warn("Cannot record ledger event without an entry id")
		return false
	}
	if stream == "" {
		stream = DefaultStream
	}

	at := time.Now()
	if rec.Time != nil {
		at = *rec.Time
	} else {
		logger.Warn("Ledger event for %s category %s has no timestamp, using now. Replays will not deduplicate.", entryID, rec.CategoryName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.recordableIndexLocked(rec.CategoryName, rec.Points)

	entries, ok := l.streams[stream]
	if !ok {
		entries = make(map[string]map[int][]time.Time)
		l.streams[stream] = entries
	}
	byRecordable, ok := entries[entryID]
	if !ok {
		byRecordable = make(map[int][]time.Time)
		entries[entryID] = byRecordable
	}

	for _, ts := range byRecordable[idx] {
		if ts.Equal(at) {
			return false
		}
	}
	byRecordable[idx] = append(byRecordable[idx], at)
	return true
}

func (l *Ledger) recordableIndexLocked(name string, points int64) int {
	for i, key := range l.recordables {
		if key.matches(name, points) {
			return i
		}
	}
	l.recordables = append(l.recordables, recordableKey{CategoryName: name, Points: points})
	return len(l.recordables) - 1
}

// EntryRecords returns every ledger entry journaled for the entry on the
// stream, flattened to resolved records.
func (l *Ledger) EntryRecords(stream, entryID string) []LedgerEntry {
	if stream == "" {
		stream = DefaultStream
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	byRecordable, ok := l.streams[stream][entryID]
	if !ok {
		return nil
	}
	return l.flattenLocked(byRecordable)
}

// RecordEntries returns the full stream keyed by entry id.
func (l *Ledger) RecordEntries(stream string) map[string][]LedgerEntry {
	if stream == "" {
		stream = DefaultStream
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string][]LedgerEntry)
	for entryID, byRecordable := range l.streams[stream] {
		out[entryID] = l.flattenLocked(byRecordable)
	}
	return out
}

func (l *Ledger) flattenLocked(byRecordable map[int][]time.Time) []LedgerEntry {
	var records []LedgerEntry
	for idx, timestamps := range byRecordable {
		if idx < 0 || idx >= len(l.recordables) {
			continue
		}
		key := l.recordables[idx]
		for _, ts := range timestamps {
			records = append(records, LedgerEntry{
				CategoryName: key.CategoryName,
				Points:       key.Points,
				Time:         ts,
			})
		}
	}
	return records
}

// Size is the total number of journaled events across all streams.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := 0
	for _, entries := range l.streams {
		for _, byRecordable := range entries {
			for _, timestamps := range byRecordable {
				size += len(timestamps)
			}
		}
	}
	return size
}

type ledgerData struct {
	ID          string                                    `json:"id"`
	Recordables []recordableKey                           `json:"recordables"`
	Streams     map[string]map[string]map[int][]time.Time `json:"streams"`
}

func (l *Ledger) MarshalJSON() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.Marshal(&ledgerData{
		ID:          l.id,
		Recordables: l.recordables,
		Streams:     l.streams,
	})
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var ld ledgerData
	if err := json.Unmarshal(data, &ld); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = ld.ID
	l.recordables = ld.Recordables
	l.streams = ld.Streams
	if l.streams == nil {
		l.streams = make(map[string]map[string]map[int][]time.Time)
	}
	return nil
}
