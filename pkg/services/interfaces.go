package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// Executor is the slice of the datasource layer the services depend on.
// *datasource.Executor satisfies it; tests substitute fakes.
type Executor interface {
	TestConnection(ctx context.Context, conn *models.Connection, password string) error
	Introspect(ctx context.Context, conn *models.Connection, password string) ([]models.SchemaTable, []string, error)
	Preview(ctx context.Context, conn *models.Connection, password, table string, limit int) (*models.ExecutionResult, error)
	Execute(ctx context.Context, conn *models.Connection, password, sqlText string) (*models.ExecutionResult, error)
}

// PoolEvictor invalidates a live connection pool after credential changes.
// *datasource.Manager satisfies it.
type PoolEvictor interface {
	Evict(connectionID uuid.UUID)
}
