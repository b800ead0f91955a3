package storage

import (
	"fmt"
	"sort"

	"github.com/shyim/docker-pg-backup/internal/config"
)

// PoolManager holds the configured storage pools
type PoolManager struct {
	pools       map[string]Storage
	defaultPool string
}

// NewPoolManager creates every configured pool through its registered storage type
func NewPoolManager(pools map[string]*config.StoragePool, defaultPool string) (*PoolManager, error) {
	pm := &PoolManager{
		pools:       make(map[string]Storage, len(pools)),
		defaultPool: defaultPool,
	}

	for name, poolCfg := range pools {
		storageType, ok := Get(poolCfg.Type)
		if !ok {
			return nil, fmt.Errorf("unknown storage type %q for pool %q (available: %v)", poolCfg.Type, name, List())
		}

		store, err := storageType.Create(name, poolCfg.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage pool %q: %w", name, err)
		}

		pm.pools[name] = store
	}

	return pm, nil
}

// Get returns a storage pool by name
func (pm *PoolManager) Get(name string) (Storage, error) {
	store, ok := pm.pools[name]
	if !ok {
		return nil, fmt.Errorf("storage pool %q not found", name)
	}
	return store, nil
}

// Resolve returns the named pool, or the default pool when name is empty
func (pm *PoolManager) Resolve(name string) (Storage, error) {
	if name != "" {
		return pm.Get(name)
	}
	if pm.defaultPool == "" {
		return nil, fmt.Errorf("no default storage pool configured")
	}
	return pm.Get(pm.defaultPool)
}

// Names returns the sorted pool names
func (pm *PoolManager) Names() []string {
	names := make([]string, 0, len(pm.pools))
	for name := range pm.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
