package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

// Function-field mocks for the service interfaces. Unset fields panic on
// use, which keeps tests honest about what they exercise.

type mockConnectionService struct {
	RegisterFunc      func(ctx context.Context, userID string, input services.ConnectionInput) (*models.Connection, error)
	UpdateFunc        func(ctx context.Context, userID string, id uuid.UUID, input services.ConnectionInput) (*models.Connection, error)
	DeleteFunc        func(ctx context.Context, userID string, id uuid.UUID) error
	GetFunc           func(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error)
	ListFunc          func(ctx context.Context, userID string) ([]*models.Connection, error)
	TestFunc          func(ctx context.Context, userID string, id uuid.UUID) error
	CredentialsFunc   func(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, string, error)
	TouchLastUsedFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockConnectionService) Register(ctx context.Context, userID string, input services.ConnectionInput) (*models.Connection, error) {
	return m.RegisterFunc(ctx, userID, input)
}

func (m *mockConnectionService) Update(ctx context.Context, userID string, id uuid.UUID, input services.ConnectionInput) (*models.Connection, error) {
	return m.UpdateFunc(ctx, userID, id, input)
}

func (m *mockConnectionService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return m.DeleteFunc(ctx, userID, id)
}

func (m *mockConnectionService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error) {
	return m.GetFunc(ctx, userID, id)
}

func (m *mockConnectionService) List(ctx context.Context, userID string) ([]*models.Connection, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockConnectionService) Test(ctx context.Context, userID string, id uuid.UUID) error {
	return m.TestFunc(ctx, userID, id)
}

func (m *mockConnectionService) Credentials(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, string, error) {
	return m.CredentialsFunc(ctx, userID, id)
}

func (m *mockConnectionService) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	return m.TouchLastUsedFunc(ctx, id)
}

var _ services.ConnectionService = (*mockConnectionService)(nil)

type mockSchemaService struct {
	RefreshFunc         func(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)
	GetCachedFunc       func(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)
	GetOrIntrospectFunc func(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error)
	PreviewFunc         func(ctx context.Context, userID string, connectionID uuid.UUID, table string, limit int) (*models.ExecutionResult, error)
}

func (m *mockSchemaService) Refresh(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	return m.RefreshFunc(ctx, userID, connectionID)
}

func (m *mockSchemaService) GetCached(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	return m.GetCachedFunc(ctx, userID, connectionID)
}

func (m *mockSchemaService) GetOrIntrospect(ctx context.Context, userID string, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	return m.GetOrIntrospectFunc(ctx, userID, connectionID)
}

func (m *mockSchemaService) Preview(ctx context.Context, userID string, connectionID uuid.UUID, table string, limit int) (*models.ExecutionResult, error) {
	return m.PreviewFunc(ctx, userID, connectionID, table, limit)
}

var _ services.SchemaService = (*mockSchemaService)(nil)

type mockPipelineService struct {
	AskFunc        func(ctx context.Context, userID string, req services.AskRequest) (*services.AskResponse, error)
	ExecuteSQLFunc func(ctx context.Context, userID string, connectionID uuid.UUID, sqlText string) (*models.ExecutionResult, error)
}

func (m *mockPipelineService) Ask(ctx context.Context, userID string, req services.AskRequest) (*services.AskResponse, error) {
	return m.AskFunc(ctx, userID, req)
}

func (m *mockPipelineService) ExecuteSQL(ctx context.Context, userID string, connectionID uuid.UUID, sqlText string) (*models.ExecutionResult, error) {
	return m.ExecuteSQLFunc(ctx, userID, connectionID, sqlText)
}

var _ services.PipelineService = (*mockPipelineService)(nil)

type mockGeneratorService struct {
	GenerateFunc func(ctx context.Context, userID string, connectionID uuid.UUID, question string, params map[string]string) (*models.GeneratedQuery, error)
}

func (m *mockGeneratorService) Generate(ctx context.Context, userID string, connectionID uuid.UUID, question string, params map[string]string) (*models.GeneratedQuery, error) {
	return m.GenerateFunc(ctx, userID, connectionID, question, params)
}

var _ services.GeneratorService = (*mockGeneratorService)(nil)

type mockParameterService struct {
	DetectFunc func(ctx context.Context, userID string, connectionID uuid.UUID, question string) (*models.DetectionResult, error)
}

func (m *mockParameterService) Detect(ctx context.Context, userID string, connectionID uuid.UUID, question string) (*models.DetectionResult, error) {
	return m.DetectFunc(ctx, userID, connectionID, question)
}

var _ services.ParameterService = (*mockParameterService)(nil)

type mockHistoryService struct {
	RecordFunc           func(ctx context.Context, entry *models.HistoryEntry)
	ListFunc             func(ctx context.Context, userID string, filters repositories.HistoryFilters) ([]*models.HistoryEntry, int, error)
	ToggleFavoriteFunc   func(ctx context.Context, userID string, id uuid.UUID) (bool, error)
	RecordCorrectionFunc func(ctx context.Context, userID string, input services.CorrectionInput) (*models.FeedbackRecord, error)
	ListFeedbackFunc     func(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error)
}

func (m *mockHistoryService) Record(ctx context.Context, entry *models.HistoryEntry) {
	m.RecordFunc(ctx, entry)
}

func (m *mockHistoryService) List(ctx context.Context, userID string, filters repositories.HistoryFilters) ([]*models.HistoryEntry, int, error) {
	return m.ListFunc(ctx, userID, filters)
}

func (m *mockHistoryService) ToggleFavorite(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	return m.ToggleFavoriteFunc(ctx, userID, id)
}

func (m *mockHistoryService) RecordCorrection(ctx context.Context, userID string, input services.CorrectionInput) (*models.FeedbackRecord, error) {
	return m.RecordCorrectionFunc(ctx, userID, input)
}

func (m *mockHistoryService) ListFeedback(ctx context.Context, userID string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	return m.ListFeedbackFunc(ctx, userID, connectionID, limit)
}

var _ services.HistoryService = (*mockHistoryService)(nil)

type mockSuggestionService struct {
	SuggestQueriesFunc        func(ctx context.Context, userID string, connectionID uuid.UUID) ([]string, error)
	SuggestVisualizationsFunc func(ctx context.Context, columns []string, rows [][]any) ([]models.VisualizationSuggestion, error)
}

func (m *mockSuggestionService) SuggestQueries(ctx context.Context, userID string, connectionID uuid.UUID) ([]string, error) {
	return m.SuggestQueriesFunc(ctx, userID, connectionID)
}

func (m *mockSuggestionService) SuggestVisualizations(ctx context.Context, columns []string, rows [][]any) ([]models.VisualizationSuggestion, error) {
	return m.SuggestVisualizationsFunc(ctx, columns, rows)
}

var _ services.SuggestionService = (*mockSuggestionService)(nil)
