package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
)

// SchemaService introspects target databases and serves cached snapshots.
type SchemaService interface {
	// Refresh introspects the target and replaces the cached snapshot.
	// A partial walk still caches what was described and returns a
	// PartialSchemaError naming the tables that failed.
	Refresh(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)

	// GetCached returns the cached snapshot, or ErrNotIntrospected when the
	// connection has never been introspected.
	GetCached(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)

	// GetOrIntrospect returns the cached snapshot, introspecting on demand
	// when none exists yet.
	GetOrIntrospect(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)

	// Preview returns the first rows of a table known to the snapshot.
	Preview(ctx context.Context, userID string, connectionID uuid.UUID, table string, limit int) (*models.ExecutionResult, error)
}

type schemaService struct {
	connections ConnectionService
	cache       repositories.SchemaCacheRepository
	executor    Executor
	logger      *zap.Logger
}

func NewSchemaService(
	connections ConnectionService,
	cache repositories.SchemaCacheRepository,
	executor Executor,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		connections: connections,
		cache:       cache,
		executor:    executor,
		logger:      logger.Named("schema"),
	}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) Refresh(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	conn, password, err := s.connections.Credentials(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	tables, failed, err := s.executor.Introspect(ctx, conn, password)
	if err != nil {
		return nil, err
	}

	snapshot := &models.SchemaSnapshot{
		Tables:   tables,
		CachedAt: time.Now().UTC(),
	}
	if err := s.cache.Upsert(ctx, connectionID, snapshot); err != nil {
		return nil, err
	}

	s.logger.Info("refreshed schema snapshot",
		zap.String("connectionID", connectionID.String()),
		zap.Int("tables", len(tables)),
		zap.Int("failedTables", len(failed)),
	)

	if len(failed) > 0 {
		return snapshot, &apperrors.PartialSchemaError{FailedTables: failed}
	}
	return snapshot, nil
}

func (s *schemaService) GetCached(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	// Ownership check before touching the cache table.
	if _, err := s.connections.Get(ctx, userID, connectionID); err != nil {
		return nil, err
	}

	snapshot, err := s.cache.Get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotIntrospected
		}
		return nil, err
	}
	return snapshot, nil
}

func (s *schemaService) GetOrIntrospect(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	snapshot, err := s.GetCached(ctx, userID, connectionID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, apperrors.ErrNotIntrospected) {
		return nil, err
	}

	snapshot, err = s.Refresh(ctx, userID, connectionID)
	var partial *apperrors.PartialSchemaError
	if err != nil && !errors.As(err, &partial) {
		return nil, err
	}
	return snapshot, nil
}

func (s *schemaService) Preview(ctx context.Context, userID string, connectionID uuid.UUID, table string, limit int) (*models.ExecutionResult, error) {
	snapshot, err := s.GetOrIntrospect(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	resolved := snapshot.Table(table)
	if resolved == nil {
		return nil, apperrors.ErrNotFound
	}

	conn, password, err := s.connections.Credentials(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	return s.executor.Preview(ctx, conn, password, resolved.Name, limit)
}
