package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/logging"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

const (
	defaultTTLMinutes      = 5
	defaultCleanupInterval = 1 * time.Minute
	defaultPoolMaxConns    = 5
	healthCheckTimeout     = 5 * time.Second
)

// ManagerConfig holds configuration for the connection manager.
type ManagerConfig struct {
	TTLMinutes   int
	PoolMaxConns int
}

// Manager keeps one database/sql pool per registered connection, with
// TTL-based expiry and a background cleanup goroutine.
type Manager struct {
	mu      sync.RWMutex
	pools   map[string]*managedPool // key: connection ID
	ttl     time.Duration
	maxConn int
	stopped bool
	stop    chan struct{}
	logger  *zap.Logger
}

type managedPool struct {
	db       *sql.DB
	driver   Driver
	lastUsed time.Time
	mu       sync.Mutex
}

// NewManager creates a connection manager and starts its cleanup goroutine,
// which runs until Close() is called.
func NewManager(cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = defaultTTLMinutes
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = defaultPoolMaxConns
	}

	m := &Manager{
		pools:   make(map[string]*managedPool),
		ttl:     time.Duration(cfg.TTLMinutes) * time.Minute,
		maxConn: cfg.PoolMaxConns,
		stop:    make(chan struct{}),
		logger:  logger,
	}

	go m.cleanupExpired()
	return m
}

// Get returns a healthy pool and driver for the connection, creating the
// pool on first use and recreating it if a health check fails.
func (m *Manager) Get(ctx context.Context, conn *models.Connection, password string) (*sql.DB, Driver, error) {
	key := conn.ID.String()

	m.mu.RLock()
	managed, exists := m.pools[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := managed.db.PingContext(healthCtx)
		cancel()

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("connectionID", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.Evict(conn.ID)
			return m.create(ctx, key, conn, password)
		}

		managed.lastUsed = time.Now()
		db, driver := managed.db, managed.driver
		managed.mu.Unlock()
		return db, driver, nil
	}

	return m.create(ctx, key, conn, password)
}

// create opens a new pool under the write lock. A concurrent creator may win
// the race, in which case its pool is reused.
func (m *Manager) create(ctx context.Context, key string, conn *models.Connection, password string) (*sql.DB, Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.pools[key]; exists {
		managed.mu.Lock()
		managed.lastUsed = time.Now()
		db, driver := managed.db, managed.driver
		managed.mu.Unlock()
		return db, driver, nil
	}

	driver, err := DriverFor(conn.Engine)
	if err != nil {
		return nil, nil, err
	}

	dsn, err := driver.DSN(conn, password)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(driver.DriverName(), dsn)
	if err != nil {
		return nil, nil, &apperrors.ConnectivityError{Err: fmt.Errorf("open %s connection: %w", conn.Engine, err)}
	}
	db.SetMaxOpenConns(m.maxConn)
	db.SetConnMaxIdleTime(m.ttl)

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, &apperrors.ConnectivityError{Err: err}
	}

	m.pools[key] = &managedPool{
		db:       db,
		driver:   driver,
		lastUsed: time.Now(),
	}

	m.logger.Info("opened connection pool",
		zap.String("connectionID", key),
		zap.String("engine", string(conn.Engine)),
	)

	return db, driver, nil
}

// Evict closes and forgets the pool for a connection. Called when a
// connection's credentials change or the connection is deleted.
func (m *Manager) Evict(connectionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := connectionID.String()
	if managed, exists := m.pools[key]; exists {
		if managed.db != nil {
			_ = managed.db.Close()
		}
		delete(m.pools, key)
		m.logger.Debug("evicted connection pool", zap.String("connectionID", key))
	}
}

func (m *Manager) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	removed := 0

	for key, managed := range m.pools {
		managed.mu.Lock()
		expired := now.Sub(managed.lastUsed) > m.ttl
		managed.mu.Unlock()

		if expired {
			if managed.db != nil {
				_ = managed.db.Close()
			}
			delete(m.pools, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned up idle connection pools",
			zap.Int("count", removed),
			zap.Int("remaining", len(m.pools)),
		)
	}
}

// Close closes all pools and stops the cleanup goroutine. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.stop)

	for _, managed := range m.pools {
		if managed.db != nil {
			_ = managed.db.Close()
		}
	}
	m.pools = make(map[string]*managedPool)
	m.logger.Info("connection manager closed")
	return nil
}

// Stats reports the number of live pools and the longest idle time.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ManagerStats{
		TotalPools: len(m.pools),
		TTLMinutes: int(m.ttl.Minutes()),
	}
	for _, managed := range m.pools {
		managed.mu.Lock()
		idle := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}
	return stats
}

// ManagerStats describes the connection manager state.
type ManagerStats struct {
	TotalPools        int `json:"total_pools"`
	TTLMinutes        int `json:"ttl_minutes"`
	OldestIdleSeconds int `json:"oldest_idle_seconds"`
}
