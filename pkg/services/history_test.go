package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/crypto"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func newHistoryFixture(t *testing.T) (*fakeHistoryRepo, *fakeFeedbackRepo, *models.Connection, HistoryService) {
	t.Helper()

	conn := &models.Connection{ID: uuid.New(), UserID: testUser, Name: "warehouse", Engine: models.EnginePostgres}
	repo := newFakeConnectionRepo(conn)
	encryptor, _ := crypto.NewEncryptor("unit-test-passphrase")
	connections := NewConnectionService(repo, newFakeSchemaCache(), encryptor, &fakeExecutor{}, &fakeEvictor{}, zap.NewNop())

	historyRepo := &fakeHistoryRepo{}
	feedbackRepo := &fakeFeedbackRepo{}
	svc := NewHistoryService(historyRepo, feedbackRepo, connections, zap.NewNop())
	return historyRepo, feedbackRepo, conn, svc
}

func TestRecordSwallowsRepositoryFailure(t *testing.T) {
	historyRepo, _, conn, svc := newHistoryFixture(t)
	historyRepo.createErr = errors.New("db down")

	// Must not panic or surface the error.
	svc.Record(context.Background(), &models.HistoryEntry{ConnectionID: conn.ID, Status: models.StatusSuccess})
	assert.Empty(t, historyRepo.entries)
}

func TestToggleFavorite(t *testing.T) {
	_, _, _, svc := newHistoryFixture(t)
	id := uuid.New()

	favorite, err := svc.ToggleFavorite(context.Background(), testUser, id)
	require.NoError(t, err)
	assert.True(t, favorite)

	favorite, err = svc.ToggleFavorite(context.Background(), testUser, id)
	require.NoError(t, err)
	assert.False(t, favorite)
}

func TestRecordCorrection(t *testing.T) {
	_, feedbackRepo, conn, svc := newHistoryFixture(t)

	record, err := svc.RecordCorrection(context.Background(), testUser, CorrectionInput{
		ConnectionID:    conn.ID,
		NaturalLanguage: "how many orders",
		OriginalSQL:     "SELECT COUNT(id) FROM orders GROUP BY id",
		CorrectedSQL:    "SELECT COUNT(*) FROM orders",
	})
	require.NoError(t, err)

	assert.Equal(t, testUser, record.UserID)
	assert.Len(t, feedbackRepo.records, 1)
}

func TestRecordCorrectionValidation(t *testing.T) {
	_, _, conn, svc := newHistoryFixture(t)

	_, err := svc.RecordCorrection(context.Background(), testUser, CorrectionInput{
		ConnectionID: conn.ID,
		OriginalSQL:  "SELECT 1",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRecordCorrectionForeignConnection(t *testing.T) {
	_, _, conn, svc := newHistoryFixture(t)

	_, err := svc.RecordCorrection(context.Background(), "someone-else", CorrectionInput{
		ConnectionID:    conn.ID,
		NaturalLanguage: "q",
		OriginalSQL:     "SELECT 1",
		CorrectedSQL:    "SELECT 2",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListFeedbackFiltersByConnection(t *testing.T) {
	_, feedbackRepo, conn, svc := newHistoryFixture(t)
	other := uuid.New()
	feedbackRepo.records = []*models.FeedbackRecord{
		{UserID: testUser, ConnectionID: conn.ID, NaturalLanguage: "a"},
		{UserID: testUser, ConnectionID: other, NaturalLanguage: "b"},
	}

	records, err := svc.ListFeedback(context.Background(), testUser, &conn.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].NaturalLanguage)
}
