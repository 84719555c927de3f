package rankforge

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

const persistenceStorageCollection = "rankforge_state"

// storageModule is the slice of runtime.NakamaModule the persistence
// service actually touches.
type storageModule interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
}

var _ PersistenceService = &NakamaPersistenceService{}

// NakamaPersistenceService stores resources as system-owned JSON storage
// objects in a single Nakama collection, one object per key.
type NakamaPersistenceService struct {
	nk         storageModule
	collection string
	codecs     map[string]Codec
}

func NewNakamaPersistenceService(nk storageModule) *NakamaPersistenceService {
	return &NakamaPersistenceService{
		nk:         nk,
		collection: persistenceStorageCollection,
		codecs:     defaultCodecs(),
	}
}

func (p *NakamaPersistenceService) codec(logger runtime.Logger, resourceID string) (Codec, bool) {
	codec, ok := p.codecs[resourceID]
	if !ok {
		logger.Error("No codec registered for resource: %s", resourceID)
	}
	return codec, ok
}

func (p *NakamaPersistenceService) SaveValue(ctx context.Context, logger runtime.Logger, resourceID, key string, value any) bool {
	codec, ok := p.codec(logger, resourceID)
	if !ok {
		return false
	}
	data, err := codec.Encode(value)
	if err != nil {
		logger.Error("Failed to encode %s %s: %v", resourceID, key, err)
		return false
	}
	return p.write(ctx, logger, key, data)
}

func (p *NakamaPersistenceService) LoadValue(ctx context.Context, logger runtime.Logger, resourceID, key string) any {
	codec, ok := p.codec(logger, resourceID)
	if !ok {
		return nil
	}
	data, ok := p.read(ctx, logger, key)
	if !ok {
		return nil
	}
	value, err := codec.Decode(data)
	if err != nil {
		logger.Error("Failed to decode %s %s: %v", resourceID, key, err)
		return nil
	}
	return value
}

func (p *NakamaPersistenceService) SaveHash(ctx context.Context, logger runtime.Logger, resourceID, key string, values map[string]any) bool {
	codec, ok := p.codec(logger, resourceID)
	if !ok {
		return false
	}

	hash := make(map[string]json.RawMessage, len(values))
	for field, value := range values {
		encoded, err := codec.Encode(value)
		if err != nil {
			logger.Error("Failed to encode %s hash field %s/%s: %v", resourceID, key, field, err)
			return false
		}
		hash[field] = json.RawMessage(encoded)
	}

	data, err := json.Marshal(hash)
	if err != nil {
		logger.Error("Failed to encode %s hash %s: %v", resourceID, key, err)
		return false
	}
	return p.write(ctx, logger, key, string(data))
}

func (p *NakamaPersistenceService) LoadHash(ctx context.Context, logger runtime.Logger, resourceID, key string) map[string]any {
	codec, ok := p.codec(logger, resourceID)
	if !ok {
		return nil
	}
	data, ok := p.read(ctx, logger, key)
	if !ok {
		return nil
	}

	var hash map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &hash); err != nil {
		logger.Error("Failed to decode %s hash %s: %v", resourceID, key, err)
		return nil
	}

	values := make(map[string]any, len(hash))
	for field, raw := range hash {
		value, err := codec.Decode(string(raw))
		if err != nil {
			logger.Error("Failed to decode %s hash field %s/%s: %v", resourceID, key, field, err)
			return nil
		}
		values[field] = value
	}
	return values
}

func (p *NakamaPersistenceService) Clear(ctx context.Context, logger runtime.Logger, key string) bool {
	if err := p.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: p.collection,
		Key:        key,
	}}); err != nil {
		logger.Error("Failed to delete storage object %s: %v", key, err)
		return false
	}
	return true
}

func (p *NakamaPersistenceService) write(ctx context.Context, logger runtime.Logger, key, value string) bool {
	if _, err := p.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      p.collection,
		Key:             key,
		Value:           value,
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}}); err != nil {
		logger.Error("Failed to write storage object %s: %v", key, err)
		return false
	}
	return true
}

func (p *NakamaPersistenceService) read(ctx context.Context, logger runtime.Logger, key string) (string, bool) {
	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: p.collection,
		Key:        key,
	}})
	if err != nil {
		logger.Error("Failed to read storage object %s: %v", key, err)
		return "", false
	}
	if len(objects) == 0 {
		return "", false
	}
	return objects[0].Value, true
}
