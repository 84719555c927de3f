package rankforge

import (
	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrInternal           = runtime.NewError("internal error occurred", 13) // INTERNAL
	ErrBadInput           = runtime.NewError("bad input", 3)                // INVALID_ARGUMENT
	ErrPayloadDecode      = runtime.NewError("cannot decode json", 13)      // INTERNAL
	ErrPayloadEmpty       = runtime.NewError("payload should not be empty", 3)
	ErrPayloadEncode      = runtime.NewError("cannot encode json", 13)
	ErrNoSessionUser      = runtime.NewError("no user ID in session", 3)
	ErrSystemNotAvailable = runtime.NewError("system not available", 13)

	// ErrUserNotRegistered indicates a score update referenced a user the
	// registry has never seen. This is a caller bug, not a transient
	// condition, so it fails loudly instead of degrading to a no-op.
	ErrUserNotRegistered = runtime.NewError("user is not registered", 9) // FAILED_PRECONDITION

	ErrCategoryReserved = runtime.NewError("category name is reserved", 3)
	ErrSetTitleMismatch = runtime.NewError("all leaderboards in a set must share a title", 3)
)

// The SystemType identifies each of the systems in this module.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeLeaderboards
	SystemTypeUserRegistry
)

// A System is a base type for a gameplay system.
type System interface {
	// GetType provides the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfig returns the configuration type of the gameplay system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each system must use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the gameplay system.
	GetConfigFile() string

	// GetRegister returns true if the gameplay system's RPCs should be registered with the game server.
	GetRegister() bool
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetRegister() bool {
	return sc.register
}

// WithLeaderboardsSystem configures a LeaderboardsSystem type and optionally registers its RPCs with the game server.
func WithLeaderboardsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeLeaderboards,
		configFile: configFile,
		register:   register,
	}
}

// WithUserRegistry configures the storage-backed UserRegistry.
func WithUserRegistry(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeUserRegistry,
		configFile: configFile,
		register:   register,
	}
}

// Rankforge provides a type which combines all systems in this module.
type Rankforge interface {
	GetLeaderboardsSystem() LeaderboardsSystem
	GetUserRegistry() UserRegistry

	// GetPersistence returns the persistence collaborator shared by all systems.
	GetPersistence() PersistenceService
}
