package rankforge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDeduplicatesExactTimestamps(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	rec := Recordable{CategoryName: "Kills", Points: 10, Time: &at}
	assert.True(t, ledger.Add(logger, "", "u1", rec))
	assert.False(t, ledger.Add(logger, "", "u1", rec))
	assert.Equal(t, 1, ledger.Size())
}

func TestLedgerDistinctTimestampsAllKept(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	base := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		require.True(t, ledger.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10, Time: &at}))
	}

	assert.Equal(t, 5, ledger.Size())
	assert.Len(t, ledger.EntryRecords("", "u1"), 5)
}

func TestLedgerSeparatesEntriesAndStreams(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	rec := Recordable{CategoryName: "Kills", Points: 10, Time: &at}
	assert.True(t, ledger.Add(logger, "", "u1", rec))
	assert.True(t, ledger.Add(logger, "", "u2", rec))
	assert.True(t, ledger.Add(logger, "archive", "u1", rec))

	assert.Equal(t, 3, ledger.Size())
	assert.Len(t, ledger.RecordEntries(DefaultStream), 2)
	assert.Len(t, ledger.EntryRecords("archive", "u1"), 1)
}

func TestLedgerCaseInsensitiveCategoryDedup(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, ledger.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10, Time: &at}))
	assert.False(t, ledger.Add(logger, "", "u1", Recordable{CategoryName: "kills", Points: 10, Time: &at}))
	assert.Equal(t, 1, ledger.Size())
}

func TestLedgerRejectsInvalidRecordables(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	at := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	assert.False(t, ledger.Add(logger, "", "u1", Recordable{Points: 10, Time: &at}))
	assert.False(t, ledger.Add(logger, "", "", Recordable{CategoryName: "Kills", Points: 10, Time: &at}))
	assert.Equal(t, 0, ledger.Size())
}

func TestLedgerNilTimeUsesNow(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()

	assert.True(t, ledger.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10}))
	records := ledger.EntryRecords("", "u1")
	require.Len(t, records, 1)
	assert.WithinDuration(t, time.Now(), records[0].Time, time.Minute)
}

func TestLedgerJSONRoundTrip(t *testing.T) {
	logger := &mockLogger{}
	ledger := NewLedger()
	base := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		require.True(t, ledger.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10, Time: &at}))
	}

	data, err := json.Marshal(ledger)
	require.NoError(t, err)

	restored := &Ledger{}
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, ledger.ID(), restored.ID())
	assert.Equal(t, 3, restored.Size())

	// The dedup table survives the round trip.
	assert.False(t, restored.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10, Time: &base}))
	next := base.Add(3 * time.Hour)
	assert.True(t, restored.Add(logger, "", "u1", Recordable{CategoryName: "Kills", Points: 10, Time: &next}))
}
