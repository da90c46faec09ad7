package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/database"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// FeedbackRepository stores corrected-SQL pairs. Records are append-only;
// recent corrections for a connection feed the generation prompt.
type FeedbackRepository interface {
	Create(ctx context.Context, record *models.FeedbackRecord) error
	List(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error)
}

type feedbackRepository struct {
	db *database.DB
}

func NewFeedbackRepository(db *database.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

var _ FeedbackRepository = (*feedbackRepository)(nil)

func (r *feedbackRepository) Create(ctx context.Context, record *models.FeedbackRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
		INSERT INTO query_feedback (
			id, user_id, connection_id, natural_language, original_sql, corrected_sql
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.ConnectionID,
		record.NaturalLanguage,
		record.OriginalSQL,
		record.CorrectedSQL,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback record: %w", err)
	}
	return nil
}

func (r *feedbackRepository) List(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if connectionID != nil {
		conditions = append(conditions, fmt.Sprintf("connection_id = $%d", argIdx))
		args = append(args, *connectionID)
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, connection_id, natural_language, original_sql, corrected_sql, created_at
		FROM query_feedback
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback records: %w", err)
	}
	defer rows.Close()

	var records []*models.FeedbackRecord
	for rows.Next() {
		var record models.FeedbackRecord
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.ConnectionID,
			&record.NaturalLanguage,
			&record.OriginalSQL,
			&record.CorrectedSQL,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}
