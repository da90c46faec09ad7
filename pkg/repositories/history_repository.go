package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/database"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// HistoryFilters narrows a history listing.
type HistoryFilters struct {
	ConnectionID  *uuid.UUID
	FavoritesOnly bool
	Limit         int
	Offset        int
}

// HistoryRepository provides data access for the query audit trail.
type HistoryRepository interface {
	Create(ctx context.Context, entry *models.HistoryEntry) error
	List(ctx context.Context, userID string, filters HistoryFilters) ([]*models.HistoryEntry, int, error)
	ToggleFavorite(ctx context.Context, userID string, id uuid.UUID) (bool, error)
}

type historyRepository struct {
	db *database.DB
}

func NewHistoryRepository(db *database.DB) HistoryRepository {
	return &historyRepository{db: db}
}

var _ HistoryRepository = (*historyRepository)(nil)

func (r *historyRepository) Create(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO query_history (
			id, user_id, connection_id, natural_language, generated_sql,
			executed_at, execution_time_ms, row_count, status, error_message, is_favorite
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ConnectionID,
		entry.NaturalLanguage,
		entry.GeneratedSQL,
		entry.ExecutedAt,
		entry.ExecutionTimeMs,
		entry.RowCount,
		entry.Status,
		entry.ErrorMessage,
		entry.IsFavorite,
	)
	if err != nil {
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	return nil
}

func (r *historyRepository) List(ctx context.Context, userID string, filters HistoryFilters) ([]*models.HistoryEntry, int, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if filters.ConnectionID != nil {
		conditions = append(conditions, fmt.Sprintf("connection_id = $%d", argIdx))
		args = append(args, *filters.ConnectionID)
		argIdx++
	}
	if filters.FavoritesOnly {
		conditions = append(conditions, "is_favorite")
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM query_history WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, user_id, connection_id, natural_language, generated_sql,
		       executed_at, execution_time_ms, row_count, status, error_message, is_favorite
		FROM query_history
		WHERE %s
		ORDER BY executed_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ConnectionID,
			&entry.NaturalLanguage,
			&entry.GeneratedSQL,
			&entry.ExecutedAt,
			&entry.ExecutionTimeMs,
			&entry.RowCount,
			&entry.Status,
			&entry.ErrorMessage,
			&entry.IsFavorite,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, total, rows.Err()
}

func (r *historyRepository) ToggleFavorite(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	query := `
		UPDATE query_history
		SET is_favorite = NOT is_favorite
		WHERE id = $1 AND user_id = $2
		RETURNING is_favorite`

	var favorite bool
	err := r.db.QueryRow(ctx, query, id, userID).Scan(&favorite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}
