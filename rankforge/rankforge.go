package rankforge

import (
	"context"
	"encoding/json"
	"io"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rankforgeImpl implements the Rankforge interface
type rankforgeImpl struct {
	persistence PersistenceService

	// Store systems in a map by type
	systems map[SystemType]System
}

// Init initializes a Rankforge type with the configurations provided.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, configs ...SystemConfig) (Rankforge, error) {
	r := &rankforgeImpl{
		persistence: NewNakamaPersistenceService(nk),
		systems:     make(map[SystemType]System),
	}

	// The user registry is a collaborator of the leaderboards system, so it
	// initializes first regardless of the order configs were passed in.
	for _, config := range configs {
		if config.GetType() == SystemTypeUserRegistry {
			if err := r.initSystem(ctx, logger, nk, initializer, config); err != nil {
				return nil, err
			}
		}
	}
	for _, config := range configs {
		if config.GetType() == SystemTypeUserRegistry {
			continue
		}
		if err := r.initSystem(ctx, logger, nk, initializer, config); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *rankforgeImpl) initSystem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config SystemConfig) error {
	logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

	switch config.GetType() {
	case SystemTypeUserRegistry:
		registry := NewStorageUserRegistry(r.persistence)
		registry.Load(ctx, logger)
		r.systems[SystemTypeUserRegistry] = registry

	case SystemTypeLeaderboards:
		leaderboardsConfig := &LeaderboardsConfig{}
		if config.GetConfigFile() != "" {
			configBytes, err := r.readConfigFile(nk, config.GetConfigFile())
			if err != nil {
				logger.Error("Failed to read config file %s: %v", config.GetConfigFile(), err)
				return err
			}
			if err := json.Unmarshal(configBytes, leaderboardsConfig); err != nil {
				logger.Error("Failed to parse Leaderboards system config: %v", err)
				return err
			}
		}

		registry := r.GetUserRegistry()
		if registry == nil {
			registry = NewStorageUserRegistry(r.persistence)
			r.systems[SystemTypeUserRegistry] = registry
		}

		system := NewRankforgeLeaderboardsSystem(leaderboardsConfig, r.persistence, registry)
		if err := system.InitFromConfig(logger); err != nil {
			return err
		}
		r.systems[SystemTypeLeaderboards] = system

		if config.GetRegister() {
			if err := registerLeaderboardsRpc(initializer, r); err != nil {
				return err
			}
		}

	default:
		logger.Error("Unknown system type: %v", config.GetType())
		return ErrBadInput
	}
	return nil
}

func (r *rankforgeImpl) readConfigFile(nk runtime.NakamaModule, path string) ([]byte, error) {
	file, err := nk.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (r *rankforgeImpl) GetLeaderboardsSystem() LeaderboardsSystem {
	system, ok := r.systems[SystemTypeLeaderboards].(LeaderboardsSystem)
	if !ok {
		return nil
	}
	return system
}

func (r *rankforgeImpl) GetUserRegistry() UserRegistry {
	registry, ok := r.systems[SystemTypeUserRegistry].(UserRegistry)
	if !ok {
		return nil
	}
	return registry
}

func (r *rankforgeImpl) GetPersistence() PersistenceService {
	return r.persistence
}
