package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/llm"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

const suggestionSystemPrompt = `Based on this database schema, suggest 5 useful analytical queries a user might want to run.

Database Schema:
%s
Respond in JSON format:
{"suggestions": ["suggestion 1", "suggestion 2", ...]}`

const visualizationSystemPrompt = `Based on this query result, suggest appropriate visualizations.

%s
For each suggestion, provide:
- chart_type: one of "bar", "line", "pie", "scatter", "table"
- reason: why this chart type is appropriate
- config: chart configuration (x_column, y_column, etc.)

Respond in JSON format:
{"suggestions": [{"chart_type": "...", "reason": "...", "config": {...}}]}`

const visualizationSampleRows = 5

// SuggestionService proposes questions to ask of a schema and chart types
// for a result set.
type SuggestionService interface {
	SuggestQueries(ctx context.Context, userID string, connectionID uuid.UUID) ([]string, error)
	SuggestVisualizations(ctx context.Context, columns []string, rows [][]any) ([]models.VisualizationSuggestion, error)
}

type suggestionService struct {
	schemas SchemaService
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewSuggestionService(schemas SchemaService, client llm.Client, timeout time.Duration, logger *zap.Logger) SuggestionService {
	return &suggestionService{
		schemas: schemas,
		client:  client,
		timeout: timeout,
		logger:  logger.Named("suggestions"),
	}
}

var _ SuggestionService = (*suggestionService)(nil)

// SuggestQueries requires an existing snapshot; it deliberately does not
// introspect on demand so a suggestion box cannot trigger a slow catalog
// walk.
func (s *suggestionService) SuggestQueries(ctx context.Context, userID string, connectionID uuid.UUID) ([]string, error) {
	snapshot, err := s.schemas.GetCached(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Complete(llmCtx, llm.CompletionRequest{
		System:      fmt.Sprintf(suggestionSystemPrompt, formatSchemaContext(snapshot)),
		Prompt:      "What are some useful queries I could run?",
		Temperature: 0.7,
		JSONOnly:    true,
	})
	if err != nil {
		if llm.IsTimeout(err) {
			return nil, &apperrors.TimeoutError{Origin: apperrors.TimeoutOriginGeneration}
		}
		return nil, &apperrors.GenerationError{Message: "suggestion generation failed", Err: err}
	}

	payload, err := llm.ParseJSONResponse[struct {
		Suggestions []string `json:"suggestions"`
	}](response)
	if err != nil {
		return nil, &apperrors.GenerationError{Message: "model returned no usable JSON", Err: err}
	}
	return payload.Suggestions, nil
}

func (s *suggestionService) SuggestVisualizations(ctx context.Context, columns []string, rows [][]any) ([]models.VisualizationSuggestion, error) {
	if len(columns) == 0 {
		return nil, apperrors.Validationf("columns are required")
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Complete(llmCtx, llm.CompletionRequest{
		System:      fmt.Sprintf(visualizationSystemPrompt, formatResultPreview(columns, rows)),
		Prompt:      "What charts would work well for this data?",
		Temperature: 0.5,
		JSONOnly:    true,
	})
	if err != nil {
		if llm.IsTimeout(err) {
			return nil, &apperrors.TimeoutError{Origin: apperrors.TimeoutOriginGeneration}
		}
		return nil, &apperrors.GenerationError{Message: "visualization suggestion failed", Err: err}
	}

	payload, err := llm.ParseJSONResponse[struct {
		Suggestions []models.VisualizationSuggestion `json:"suggestions"`
	}](response)
	if err != nil {
		return nil, &apperrors.GenerationError{Message: "model returned no usable JSON", Err: err}
	}
	return payload.Suggestions, nil
}

func formatResultPreview(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString("Columns: " + strings.Join(columns, ", ") + "\n")
	b.WriteString("Sample rows:\n")
	for i, row := range rows {
		if i >= visualizationSampleRows {
			break
		}
		fmt.Fprintf(&b, "%v\n", row)
	}
	return b.String()
}
