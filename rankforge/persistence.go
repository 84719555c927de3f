package rankforge

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Resource ids name the kinds of state the persistence layer knows how to
// encode and decode. The codec for a resource id is resolved explicitly
// from the registry; there is no reflection.
const (
	ResourceLeaderboard    = "leaderboard"
	ResourceLeaderboardSet = "leaderboard_set"
	ResourceService        = "leaderboard_service"
	ResourceLedger         = "ledger"
	ResourceUser           = "user"
)

// Codec converts one resource kind to and from its persisted JSON text.
type Codec struct {
	Encode func(value any) (string, error)
	Decode func(data string) (any, error)
}

func jsonCodec(newValue func() any) Codec {
	return Codec{
		Encode: func(value any) (string, error) {
			data, err := json.Marshal(value)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		Decode: func(data string) (any, error) {
			value := newValue()
			if err := json.Unmarshal([]byte(data), value); err != nil {
				return nil, err
			}
			return value, nil
		},
	}
}

// defaultCodecs is the registry of every persistable resource kind.
func defaultCodecs() map[string]Codec {
	return map[string]Codec{
		ResourceLeaderboard:    jsonCodec(func() any { return &Leaderboard{} }),
		ResourceLeaderboardSet: jsonCodec(func() any { return &LeaderboardSet{} }),
		ResourceService:        jsonCodec(func() any { return &serviceSnapshot{} }),
		ResourceLedger:         jsonCodec(func() any { return &Ledger{} }),
		ResourceUser:           jsonCodec(func() any { return &User{} }),
	}
}

// PersistenceService is the storage collaborator shared by all systems.
// Values travel as JSON text; the resource id selects the codec. Failures
// are logged and reported as false or nil, never panics, and there are no
// internal retries.
type PersistenceService interface {
	// SaveValue persists one value under the key.
	SaveValue(ctx context.Context, logger runtime.Logger, resourceID, key string, value any) bool

	// LoadValue retrieves the value stored under the key, or nil when it is
	// absent or cannot be decoded.
	LoadValue(ctx context.Context, logger runtime.Logger, resourceID, key string) any

	// SaveHash persists a field-to-value table as one object under the key.
	SaveHash(ctx context.Context, logger runtime.Logger, resourceID, key string, values map[string]any) bool

	// LoadHash retrieves the table stored under the key, or nil when absent.
	LoadHash(ctx context.Context, logger runtime.Logger, resourceID, key string) map[string]any

	// Clear removes the object stored under the key.
	Clear(ctx context.Context, logger runtime.Logger, key string) bool
}
