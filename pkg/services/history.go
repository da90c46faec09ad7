package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
)

// CorrectionInput is a user-supplied fix for a generated statement.
type CorrectionInput struct {
	ConnectionID    uuid.UUID `json:"connection_id"`
	NaturalLanguage string    `json:"natural_language"`
	OriginalSQL     string    `json:"original_sql"`
	CorrectedSQL    string    `json:"corrected_sql"`
}

// HistoryService records and serves the query audit trail plus correction
// feedback.
type HistoryService interface {
	// Record persists an audit entry. Failures are logged, never surfaced:
	// an audit problem must not break a succeeded query.
	Record(ctx context.Context, entry *models.HistoryEntry)

	List(ctx context.Context, userID string, filters repositories.HistoryFilters) ([]*models.HistoryEntry, int, error)
	ToggleFavorite(ctx context.Context, userID string, id uuid.UUID) (bool, error)

	RecordCorrection(ctx context.Context, userID string, input CorrectionInput) (*models.FeedbackRecord, error)
	ListFeedback(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error)
}

type historyService struct {
	history     repositories.HistoryRepository
	feedback    repositories.FeedbackRepository
	connections ConnectionService
	logger      *zap.Logger
}

func NewHistoryService(
	history repositories.HistoryRepository,
	feedback repositories.FeedbackRepository,
	connections ConnectionService,
	logger *zap.Logger,
) HistoryService {
	return &historyService{
		history:     history,
		feedback:    feedback,
		connections: connections,
		logger:      logger.Named("history"),
	}
}

var _ HistoryService = (*historyService)(nil)

func (s *historyService) Record(ctx context.Context, entry *models.HistoryEntry) {
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record history entry",
			zap.String("connectionID", entry.ConnectionID.String()),
			zap.Error(err),
		)
	}
}

func (s *historyService) List(ctx context.Context, userID string, filters repositories.HistoryFilters) ([]*models.HistoryEntry, int, error) {
	return s.history.List(ctx, userID, filters)
}

func (s *historyService) ToggleFavorite(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	return s.history.ToggleFavorite(ctx, userID, id)
}

func (s *historyService) RecordCorrection(ctx context.Context, userID string, input CorrectionInput) (*models.FeedbackRecord, error) {
	if input.NaturalLanguage == "" || input.OriginalSQL == "" || input.CorrectedSQL == "" {
		return nil, apperrors.Validationf("natural_language, original_sql and corrected_sql are required")
	}

	// Ownership check so corrections cannot attach to a foreign connection.
	if _, err := s.connections.Get(ctx, userID, input.ConnectionID); err != nil {
		return nil, err
	}

	record := &models.FeedbackRecord{
		UserID:          userID,
		ConnectionID:    input.ConnectionID,
		NaturalLanguage: input.NaturalLanguage,
		OriginalSQL:     input.OriginalSQL,
		CorrectedSQL:    input.CorrectedSQL,
	}
	if err := s.feedback.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *historyService) ListFeedback(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	return s.feedback.List(ctx, userID, connectionID, limit)
}
