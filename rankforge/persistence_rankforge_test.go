package rankforge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeStorage is an in-memory storageModule keyed by collection/key.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]string)}
}

func (f *fakeStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objects := make([]*api.StorageObject, 0, len(reads))
	for _, read := range reads {
		value, ok := f.objects[read.Collection+"/"+read.Key]
		if !ok {
			continue
		}
		objects = append(objects, &api.StorageObject{
			Collection: read.Collection,
			Key:        read.Key,
			Value:      value,
		})
	}
	return objects, nil
}

func (f *fakeStorage) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, write := range writes {
		f.objects[write.Collection+"/"+write.Key] = write.Value
		acks = append(acks, &api.StorageObjectAck{Collection: write.Collection, Key: write.Key})
	}
	return acks, nil
}

func (f *fakeStorage) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, del := range deletes {
		delete(f.objects, del.Collection+"/"+del.Key)
	}
	return nil
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	args := m.Called(ctx, reads)
	objects, _ := args.Get(0).([]*api.StorageObject)
	return objects, args.Error(1)
}

func (m *mockStorage) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	args := m.Called(ctx, writes)
	acks, _ := args.Get(0).([]*api.StorageObjectAck)
	return acks, args.Error(1)
}

func (m *mockStorage) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	args := m.Called(ctx, deletes)
	return args.Error(0)
}

func TestNakamaPersistenceRoundTrip(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()
	service := NewNakamaPersistenceService(newFakeStorage())

	l := NewLeaderboard("arena", CycleDaily, time.Date(2024, 5, 15, 6, 0, 0, 0, DefaultReferenceZone), nil)
	require.NoError(t, l.AddCategories(logger, "Kills"))
	l.RegisterUser(logger, &User{ID: "u1"})
	require.True(t, l.RecordPoints(logger, &User{ID: "u1"}, "Kills", 12))

	require.True(t, service.SaveValue(ctx, logger, ResourceLeaderboard, "leaderboard_x", l))

	value := service.LoadValue(ctx, logger, ResourceLeaderboard, "leaderboard_x")
	restored, ok := value.(*Leaderboard)
	require.True(t, ok)
	score, found := restored.GetScore(logger, "u1", "Kills")
	require.True(t, found)
	assert.Equal(t, int64(12), score.Points)
}

func TestNakamaPersistenceHashRoundTrip(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()
	service := NewNakamaPersistenceService(newFakeStorage())

	values := map[string]any{
		"u1": &User{ID: "u1", TeamName: "red"},
		"u2": &User{ID: "u2", GuildName: "dragons"},
	}
	require.True(t, service.SaveHash(ctx, logger, ResourceUser, "user_registry", values))

	loaded := service.LoadHash(ctx, logger, ResourceUser, "user_registry")
	require.Len(t, loaded, 2)
	u1, ok := loaded["u1"].(*User)
	require.True(t, ok)
	assert.Equal(t, "red", u1.TeamName)
}

func TestNakamaPersistenceMissingKey(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()
	service := NewNakamaPersistenceService(newFakeStorage())

	assert.Nil(t, service.LoadValue(ctx, logger, ResourceLeaderboard, "nope"))
	assert.Nil(t, service.LoadHash(ctx, logger, ResourceUser, "nope"))
}

func TestNakamaPersistenceUnknownResource(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()
	service := NewNakamaPersistenceService(newFakeStorage())

	assert.False(t, service.SaveValue(ctx, logger, "mystery", "key", struct{}{}))
	assert.Nil(t, service.LoadValue(ctx, logger, "mystery", "key"))
}

func TestNakamaPersistenceStorageFailure(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()

	nk := &mockStorage{}
	nk.On("StorageWrite", ctx, mock.MatchedBy(func(writes []*runtime.StorageWrite) bool {
		return len(writes) == 1 && writes[0].Collection == persistenceStorageCollection
	})).Return(nil, errors.New("storage down"))
	nk.On("StorageRead", ctx, mock.Anything).Return(nil, errors.New("storage down"))
	nk.On("StorageDelete", ctx, mock.Anything).Return(errors.New("storage down"))

	service := NewNakamaPersistenceService(nk)
	l := NewLeaderboard("arena", CycleDaily, time.Now(), nil)

	assert.False(t, service.SaveValue(ctx, logger, ResourceLeaderboard, "key", l))
	assert.Nil(t, service.LoadValue(ctx, logger, ResourceLeaderboard, "key"))
	assert.False(t, service.Clear(ctx, logger, "key"))
	nk.AssertExpectations(t)
}

func TestPersistenceClear(t *testing.T) {
	logger := &mockLogger{}
	ctx := context.Background()
	service := NewNakamaPersistenceService(newFakeStorage())

	l := NewLeaderboard("arena", CycleDaily, time.Now(), nil)
	require.True(t, service.SaveValue(ctx, logger, ResourceLeaderboard, "key", l))
	require.True(t, service.Clear(ctx, logger, "key"))
	assert.Nil(t, service.LoadValue(ctx, logger, ResourceLeaderboard, "key"))
}
