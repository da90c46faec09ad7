// Package datasource manages connections to user-registered target databases
// and executes validated SQL against them through engine-specific drivers.
package datasource

import (
	"context"
	"database/sql"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// Driver adapts one database engine to the execution layer. Implementations
// register themselves via init() and are looked up by engine kind. All
// drivers run through database/sql so pooling, timeouts and row scanning are
// shared; the driver contributes only the engine-specific pieces.
type Driver interface {
	// Kind returns the engine this driver serves.
	Kind() models.EngineKind

	// DriverName is the database/sql driver name to open connections with.
	DriverName() string

	// DSN builds a connection string from the stored connection fields and
	// the decrypted password.
	DSN(conn *models.Connection, password string) (string, error)

	// IntrospectSchema walks the engine's catalog and returns tables with
	// columns, primary keys, foreign keys, and approximate row counts.
	// Per-table failures do not abort the walk; the names of tables that
	// could not be fully described are returned separately.
	IntrospectSchema(ctx context.Context, db *sql.DB, conn *models.Connection) ([]models.SchemaTable, []string, error)

	// QuoteIdentifier quotes a table or column name in the engine's dialect.
	QuoteIdentifier(name string) string

	// LimitClause wraps or suffixes a SELECT so it returns at most limit rows.
	LimitClause(sqlText string, limit int) string
}
