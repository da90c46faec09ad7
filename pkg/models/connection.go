package models

import (
	"time"

	"github.com/google/uuid"
)

// EngineKind identifies a supported target database engine.
type EngineKind string

const (
	EnginePostgres EngineKind = "postgres"
	EngineMySQL    EngineKind = "mysql"
	EngineSQLite   EngineKind = "sqlite"
	EngineMSSQL    EngineKind = "mssql"
)

// Valid reports whether k is one of the supported engine kinds.
func (k EngineKind) Valid() bool {
	switch k {
	case EnginePostgres, EngineMySQL, EngineSQLite, EngineMSSQL:
		return true
	}
	return false
}

// DefaultPort returns the engine's conventional port, or 0 for file-based engines.
func (k EngineKind) DefaultPort() int {
	switch k {
	case EnginePostgres:
		return 5432
	case EngineMySQL:
		return 3306
	case EngineMSSQL:
		return 1433
	}
	return 0
}

// Networked reports whether the engine is reached over host/port rather than
// a file path.
func (k EngineKind) Networked() bool {
	return k != EngineSQLite
}

// Connection is a registered target database. The password is stored
// encrypted and never serialized back to clients.
type Connection struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"-"`
	Name         string     `json:"name"`
	Engine       EngineKind `json:"db_type"`
	Host         *string    `json:"host,omitempty"`
	Port         *int       `json:"port,omitempty"`
	DatabaseName string     `json:"database_name"`
	Username     *string    `json:"username,omitempty"`

	// PasswordEncrypted holds base64(nonce || ciphertext || tag). Write-only
	// from the API's point of view.
	PasswordEncrypted *string `json:"-"`

	SSLEnabled bool       `json:"ssl_enabled"`
	IsReadOnly bool       `json:"is_readonly"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// HostOrDefault returns the configured host, defaulting to localhost.
func (c *Connection) HostOrDefault() string {
	if c.Host != nil && *c.Host != "" {
		return *c.Host
	}
	return "localhost"
}

// PortOrDefault returns the configured port, defaulting per engine.
func (c *Connection) PortOrDefault() int {
	if c.Port != nil && *c.Port != 0 {
		return *c.Port
	}
	return c.Engine.DefaultPort()
}
