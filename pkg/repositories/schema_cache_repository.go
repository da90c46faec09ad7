package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/database"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// SchemaCacheRepository persists one schema snapshot per connection.
// A refresh replaces the row wholesale; there is no incremental merge.
type SchemaCacheRepository interface {
	Upsert(ctx context.Context, connectionID uuid.UUID, snapshot *models.SchemaSnapshot) error
	Get(ctx context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error)
	Delete(ctx context.Context, connectionID uuid.UUID) error
}

type schemaCacheRepository struct {
	db *database.DB
}

func NewSchemaCacheRepository(db *database.DB) SchemaCacheRepository {
	return &schemaCacheRepository{db: db}
}

var _ SchemaCacheRepository = (*schemaCacheRepository)(nil)

func (r *schemaCacheRepository) Upsert(ctx context.Context, connectionID uuid.UUID, snapshot *models.SchemaSnapshot) error {
	payload, err := json.Marshal(snapshot.Tables)
	if err != nil {
		return fmt.Errorf("failed to marshal schema snapshot: %w", err)
	}

	query := `
		INSERT INTO schema_cache (connection_id, tables, cached_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id)
		DO UPDATE SET tables = EXCLUDED.tables, cached_at = EXCLUDED.cached_at`

	if _, err := r.db.Exec(ctx, query, connectionID, payload, snapshot.CachedAt); err != nil {
		return fmt.Errorf("failed to upsert schema snapshot: %w", err)
	}
	return nil
}

func (r *schemaCacheRepository) Get(ctx context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	query := `SELECT tables, cached_at FROM schema_cache WHERE connection_id = $1`

	var payload []byte
	snapshot := &models.SchemaSnapshot{}

	err := r.db.QueryRow(ctx, query, connectionID).Scan(&payload, &snapshot.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema snapshot: %w", err)
	}

	if err := json.Unmarshal(payload, &snapshot.Tables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema snapshot: %w", err)
	}
	return snapshot, nil
}

func (r *schemaCacheRepository) Delete(ctx context.Context, connectionID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM schema_cache WHERE connection_id = $1`, connectionID); err != nil {
		return fmt.Errorf("failed to delete schema snapshot: %w", err)
	}
	return nil
}
