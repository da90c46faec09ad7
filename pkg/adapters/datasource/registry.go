package datasource

import (
	"sync"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[models.EngineKind]Driver)
)

// Register is called by each driver's init() function.
// Thread-safe for concurrent init() calls.
func Register(driver Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[driver.Kind()] = driver
}

// DriverFor returns the driver registered for an engine kind.
func DriverFor(kind models.EngineKind) (Driver, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	driver, ok := registry[kind]
	if !ok {
		return nil, apperrors.Validationf("unsupported database engine %q", kind)
	}
	return driver, nil
}

// RegisteredKinds returns the engine kinds with a registered driver.
func RegisteredKinds() []models.EngineKind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]models.EngineKind, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	return kinds
}
