package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/auth"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

type queryMocks struct {
	pipeline    *mockPipelineService
	generator   *mockGeneratorService
	params      *mockParameterService
	history     *mockHistoryService
	suggestions *mockSuggestionService
}

func newQueryMux(m *queryMocks) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewQueryHandler(m.pipeline, m.generator, m.params, m.history, m.suggestions, zap.NewNop())
	h.RegisterRoutes(mux, auth.NewMiddleware("", false, zap.NewNop()))
	return mux
}

func emptyQueryMocks() *queryMocks {
	return &queryMocks{
		pipeline:    &mockPipelineService{},
		generator:   &mockGeneratorService{},
		params:      &mockParameterService{},
		history:     &mockHistoryService{},
		suggestions: &mockSuggestionService{},
	}
}

func TestAskEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.pipeline.AskFunc = func(_ context.Context, userID string, req services.AskRequest) (*services.AskResponse, error) {
		assert.Equal(t, "local-dev", userID)
		assert.Equal(t, "top customers", req.Question)
		assert.True(t, req.AutoExecute)
		return &services.AskResponse{SQL: "SELECT 1", Explanation: "done"}, nil
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "natural_language": "top customers", "auto_execute": true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/ask", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response services.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "SELECT 1", response.SQL)
}

func TestAskEndpointSafetyViolation(t *testing.T) {
	m := emptyQueryMocks()
	m.pipeline.AskFunc = func(_ context.Context, _ string, _ services.AskRequest) (*services.AskResponse, error) {
		return nil, &apperrors.SafetyViolation{Reason: apperrors.ReasonReadOnlyViolation, Message: "only SELECT statements are allowed"}
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "natural_language": "drop it all"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/ask", strings.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "read_only_violation")
}

func TestGenerateEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.generator.GenerateFunc = func(_ context.Context, _ string, _ uuid.UUID, question string, params map[string]string) (*models.GeneratedQuery, error) {
		assert.Equal(t, "orders for acme", question)
		assert.Equal(t, map[string]string{"customer": "acme"}, params)
		return &models.GeneratedQuery{SQL: "SELECT 1", Explanation: "x"}, nil
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "natural_language": "orders for acme", "parameters": {"customer": "acme"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/generate", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetectParametersEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.params.DetectFunc = func(_ context.Context, _ string, _ uuid.UUID, _ string) (*models.DetectionResult, error) {
		return &models.DetectionResult{
			NeedsParameters: true,
			Parameters:      []models.ParameterSpec{{Name: "customer_name", Label: "Customer Name", Kind: models.ParameterText, Required: true}},
		}, nil
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "natural_language": "orders for a customer"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/detect-parameters", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "customer_name")
}

func TestExecuteEndpointTimeout(t *testing.T) {
	m := emptyQueryMocks()
	m.pipeline.ExecuteSQLFunc = func(_ context.Context, _ string, _ uuid.UUID, _ string) (*models.ExecutionResult, error) {
		return nil, &apperrors.TimeoutError{Origin: apperrors.TimeoutOriginExecution}
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "sql": "SELECT pg_sleep(600)"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/execute", strings.NewReader(body)))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHistoryEndpointFilters(t *testing.T) {
	connID := uuid.New()
	var gotFilters repositories.HistoryFilters
	m := emptyQueryMocks()
	m.history.ListFunc = func(_ context.Context, _ string, filters repositories.HistoryFilters) ([]*models.HistoryEntry, int, error) {
		gotFilters = filters
		return []*models.HistoryEntry{{ID: uuid.New(), Status: models.StatusSuccess}}, 1, nil
	}
	mux := newQueryMux(m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/query/history?connection_id="+connID.String()+"&favorites_only=true&limit=5&offset=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotFilters.ConnectionID)
	assert.Equal(t, connID, *gotFilters.ConnectionID)
	assert.True(t, gotFilters.FavoritesOnly)
	assert.Equal(t, 5, gotFilters.Limit)
	assert.Equal(t, 10, gotFilters.Offset)

	var response HistoryListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
}

func TestToggleFavoriteEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.history.ToggleFavoriteFunc = func(_ context.Context, _ string, _ uuid.UUID) (bool, error) {
		return true, nil
	}
	mux := newQueryMux(m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut,
		"/api/query/history/"+uuid.NewString()+"/favorite", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_favorite": true}`, rec.Body.String())
}

func TestSuggestionsEndpointRequiresConnectionID(t *testing.T) {
	mux := newQueryMux(emptyQueryMocks())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query/suggestions", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionsEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.suggestions.SuggestQueriesFunc = func(_ context.Context, _ string, _ uuid.UUID) ([]string, error) {
		return []string{"Orders per month"}, nil
	}
	mux := newQueryMux(m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/query/suggestions?connection_id="+uuid.NewString(), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Orders per month")
}

func TestRecordFeedbackEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.history.RecordCorrectionFunc = func(_ context.Context, _ string, input services.CorrectionInput) (*models.FeedbackRecord, error) {
		return &models.FeedbackRecord{
			ID:              uuid.New(),
			ConnectionID:    input.ConnectionID,
			NaturalLanguage: input.NaturalLanguage,
			OriginalSQL:     input.OriginalSQL,
			CorrectedSQL:    input.CorrectedSQL,
		}, nil
	}
	mux := newQueryMux(m)

	body := `{"connection_id": "` + uuid.NewString() + `", "natural_language": "q", "original_sql": "SELECT 1", "corrected_sql": "SELECT 2"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/feedback", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListFeedbackEndpoint(t *testing.T) {
	m := emptyQueryMocks()
	m.history.ListFeedbackFunc = func(_ context.Context, _ string, connectionID *uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
		assert.Nil(t, connectionID)
		return nil, nil
	}
	mux := newQueryMux(m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query/feedback", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feedback": []}`, rec.Body.String())
}
