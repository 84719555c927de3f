package rankforge

import (
	"context"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

const userRegistryStorageKey = "user_registry"

var _ UserRegistry = &StorageUserRegistry{}

// StorageUserRegistry is the default UserRegistry: a mutex-guarded user
// table snapshotted as one hash object through the persistence service,
// one hash field per user.
type StorageUserRegistry struct {
	mu          sync.RWMutex
	users       map[string]*User
	persistence PersistenceService
}

func NewStorageUserRegistry(persistence PersistenceService) *StorageUserRegistry {
	return &StorageUserRegistry{
		users:       make(map[string]*User),
		persistence: persistence,
	}
}

func (r *StorageUserRegistry) GetType() SystemType {
	return SystemTypeUserRegistry
}

func (r *StorageUserRegistry) GetConfig() any {
	return nil
}

func (r *StorageUserRegistry) Register(logger runtime.Logger, user *User) error {
	if user == nil || user.ID == "" {
		logger.Error("Cannot register a user without an id")
		return ErrBadInput
	}

	stored := *user
	r.mu.Lock()
	r.users[user.ID] = &stored
	r.mu.Unlock()
	return nil
}

func (r *StorageUserRegistry) IsRegistered(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

func (r *StorageUserRegistry) Get(userID string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	out := *user
	return &out, true
}

func (r *StorageUserRegistry) All() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		out = append(out, &u)
	}
	return out
}

func (r *StorageUserRegistry) Save(ctx context.Context, logger runtime.Logger) bool {
	r.mu.RLock()
	values := make(map[string]any, len(r.users))
	for id, user := range r.users {
		u := *user
		values[id] = &u
	}
	r.mu.RUnlock()

	return r.persistence.SaveHash(ctx, logger, ResourceUser, userRegistryStorageKey, values)
}

func (r *StorageUserRegistry) Load(ctx context.Context, logger runtime.Logger) bool {
	values := r.persistence.LoadHash(ctx, logger, ResourceUser, userRegistryStorageKey)
	if values == nil {
		return false
	}

	users := make(map[string]*User, len(values))
	for id, value := range values {
		user, ok := value.(*User)
		if !ok {
			logger.Error("Unexpected user registry value for %s", id)
			continue
		}
		users[id] = user
	}

	r.mu.Lock()
	r.users = users
	r.mu.Unlock()
	return true
}
