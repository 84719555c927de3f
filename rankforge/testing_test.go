package rankforge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

// mockLogger is a no-op runtime.Logger for tests.
type mockLogger struct{}

func (l *mockLogger) Debug(format string, v ...interface{})                   {}
func (l *mockLogger) Info(format string, v ...interface{})                    {}
func (l *mockLogger) Warn(format string, v ...interface{})                    {}
func (l *mockLogger) Error(format string, v ...interface{})                   {}
func (l *mockLogger) WithField(key string, v interface{}) runtime.Logger      { return l }
func (l *mockLogger) WithFields(fields map[string]interface{}) runtime.Logger { return l }
func (l *mockLogger) Fields() map[string]interface{}                          { return nil }

var _ PersistenceService = &memoryPersistence{}

// memoryPersistence is an in-memory PersistenceService fake that round-trips
// values through the same codecs as the real storage-backed service.
type memoryPersistence struct {
	mu      sync.Mutex
	objects map[string]string
	codecs  map[string]Codec
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{
		objects: make(map[string]string),
		codecs:  defaultCodecs(),
	}
}

func (p *memoryPersistence) SaveValue(ctx context.Context, logger runtime.Logger, resourceID, key string, value any) bool {
	codec, ok := p.codecs[resourceID]
	if !ok {
		return false
	}
	data, err := codec.Encode(value)
	if err != nil {
		return false
	}
	p.mu.Lock()
	p.objects[key] = data
	p.mu.Unlock()
	return true
}

func (p *memoryPersistence) LoadValue(ctx context.Context, logger runtime.Logger, resourceID, key string) any {
	codec, ok := p.codecs[resourceID]
	if !ok {
		return nil
	}
	p.mu.Lock()
	data, found := p.objects[key]
	p.mu.Unlock()
	if !found {
		return nil
	}
	value, err := codec.Decode(data)
	if err != nil {
		return nil
	}
	return value
}

func (p *memoryPersistence) SaveHash(ctx context.Context, logger runtime.Logger, resourceID, key string, values map[string]any) bool {
	codec, ok := p.codecs[resourceID]
	if !ok {
		return false
	}
	hash := make(map[string]json.RawMessage, len(values))
	for field, value := range values {
		data, err := codec.Encode(value)
		if err != nil {
			return false
		}
		hash[field] = json.RawMessage(data)
	}
	data, err := json.Marshal(hash)
	if err != nil {
		return false
	}

	p.mu.Lock()
	p.objects[key] = string(data)
	p.mu.Unlock()
	return true
}

func (p *memoryPersistence) LoadHash(ctx context.Context, logger runtime.Logger, resourceID, key string) map[string]any {
	codec, ok := p.codecs[resourceID]
	if !ok {
		return nil
	}
	p.mu.Lock()
	data, found := p.objects[key]
	p.mu.Unlock()
	if !found {
		return nil
	}

	var hash map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &hash); err != nil {
		return nil
	}
	out := make(map[string]any, len(hash))
	for field, raw := range hash {
		value, err := codec.Decode(string(raw))
		if err != nil {
			return nil
		}
		out[field] = value
	}
	return out
}

func (p *memoryPersistence) Clear(ctx context.Context, logger runtime.Logger, key string) bool {
	p.mu.Lock()
	delete(p.objects, key)
	p.mu.Unlock()
	return true
}
