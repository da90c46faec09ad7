package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/llm"
)

func newSuggestionFixture(t *testing.T, mock *llm.MockClient) (*schemaFixture, SuggestionService) {
	t.Helper()
	f := newSchemaFixture(t)
	svc := NewSuggestionService(f.svc, mock, testLLMTimeout, zap.NewNop())
	return f, svc
}

func TestSuggestQueries(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ llm.CompletionRequest) (string, error) {
		return `{"suggestions": ["Total revenue by customer", "Orders per month"]}`, nil
	}
	f, svc := newSuggestionFixture(t, mock)

	_, err := f.svc.Refresh(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)

	suggestions, err := svc.SuggestQueries(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total revenue by customer", "Orders per month"}, suggestions)

	require.Len(t, mock.CompleteCalls, 1)
	assert.Contains(t, mock.CompleteCalls[0].System, "Table: orders")
}

func TestSuggestQueriesRequiresSnapshot(t *testing.T) {
	f, svc := newSuggestionFixture(t, llm.NewMockClient())

	_, err := svc.SuggestQueries(context.Background(), testUser, f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotIntrospected)
}

func TestSuggestVisualizations(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ llm.CompletionRequest) (string, error) {
		return `{"suggestions": [{"chart_type": "bar", "reason": "categorical x axis", "config": {"x_column": "customer", "y_column": "total"}}]}`, nil
	}
	_, svc := newSuggestionFixture(t, mock)

	suggestions, err := svc.SuggestVisualizations(context.Background(),
		[]string{"customer", "total"},
		[][]any{{"acme", 120.5}, {"globex", 88.0}},
	)
	require.NoError(t, err)

	require.Len(t, suggestions, 1)
	assert.Equal(t, "bar", suggestions[0].ChartType)
	assert.Equal(t, "customer", suggestions[0].Config["x_column"])

	assert.Contains(t, mock.CompleteCalls[0].System, "Columns: customer, total")
	assert.Contains(t, mock.CompleteCalls[0].System, "acme")
}

func TestSuggestVisualizationsRequiresColumns(t *testing.T) {
	_, svc := newSuggestionFixture(t, llm.NewMockClient())

	_, err := svc.SuggestVisualizations(context.Background(), nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSuggestQueriesGarbageResponse(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ llm.CompletionRequest) (string, error) {
		return "no json here", nil
	}
	f, svc := newSuggestionFixture(t, mock)

	_, err := f.svc.Refresh(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)

	_, err = svc.SuggestQueries(context.Background(), testUser, f.conn.ID)
	var genErr *apperrors.GenerationError
	assert.ErrorAs(t, err, &genErr)
}
