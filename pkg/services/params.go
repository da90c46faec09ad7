package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/jsonutil"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/llm"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

const detectionSystemPrompt = `You are a SQL assistant. Decide whether the user's question can be turned into one concrete SQL query as written, or whether it references values the user still has to supply (a specific customer, a date range, a threshold).

Database Schema:
%s

Respond in JSON format:
{"needs_parameters": true/false, "parameters": [{"name": "snake_case_name", "label": "Human label", "type": "text|number|date", "description": "what to enter", "default": "optional default", "required": true/false}], "clarification": "one short question to ask the user, if any"}

If the question is fully specified, return {"needs_parameters": false, "parameters": []}.`

// ParameterService decides whether a question needs user-supplied values
// before SQL generation.
type ParameterService interface {
	Detect(ctx context.Context, userID string, connectionID uuid.UUID, question string) (*models.DetectionResult, error)
}

type parameterService struct {
	schemas SchemaService
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewParameterService(schemas SchemaService, client llm.Client, timeout time.Duration, logger *zap.Logger) ParameterService {
	return &parameterService{
		schemas: schemas,
		client:  client,
		timeout: timeout,
		logger:  logger.Named("params"),
	}
}

var _ ParameterService = (*parameterService)(nil)

// detectionPayload mirrors the JSON contract of the detection prompt.
type detectionPayload struct {
	NeedsParameters bool   `json:"needs_parameters"`
	Clarification   string `json:"clarification"`
	Parameters      []struct {
		Name        string          `json:"name"`
		Label       string          `json:"label"`
		Type        string          `json:"type"`
		Description string          `json:"description"`
		Default     json.RawMessage `json:"default"`
		Required    *bool           `json:"required"`
	} `json:"parameters"`
}

// Detect asks the model for a verdict and falls back to a lexical heuristic
// when the provider is unavailable. Detection never fails the pipeline.
func (s *parameterService) Detect(ctx context.Context, userID string, connectionID uuid.UUID, question string) (*models.DetectionResult, error) {
	snapshot, err := s.schemas.GetOrIntrospect(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Complete(llmCtx, llm.CompletionRequest{
		System:      fmt.Sprintf(detectionSystemPrompt, formatSchemaContext(relevantSnapshot(question, snapshot))),
		Prompt:      question,
		Temperature: 0.1,
		JSONOnly:    true,
	})
	if err != nil {
		s.logger.Warn("parameter detection degraded to heuristic", zap.Error(err))
		return heuristicDetect(question), nil
	}

	payload, err := llm.ParseJSONResponse[detectionPayload](response)
	if err != nil {
		s.logger.Warn("unparseable detection response, using heuristic", zap.Error(err))
		return heuristicDetect(question), nil
	}

	result := &models.DetectionResult{
		NeedsParameters: payload.NeedsParameters,
		Parameters:      make([]models.ParameterSpec, 0, len(payload.Parameters)),
		Clarification:   payload.Clarification,
	}
	for _, p := range payload.Parameters {
		if p.Name == "" {
			continue
		}
		// Models return numeric and boolean defaults unquoted; coerce rather
		// than drop the whole parameter.
		defaultValue, convErr := jsonutil.FlexibleStringValue(p.Default)
		if convErr != nil {
			s.logger.Debug("discarding non-scalar parameter default",
				zap.String("param", p.Name), zap.Error(convErr))
		}

		spec := models.ParameterSpec{
			Name:        p.Name,
			Label:       p.Label,
			Kind:        models.NormalizeParameterKind(p.Type),
			Description: p.Description,
			Default:     defaultValue,
			Required:    true,
		}
		if spec.Label == "" {
			spec.Label = labelFromName(p.Name)
		}
		if p.Required != nil {
			spec.Required = *p.Required
		}
		result.Parameters = append(result.Parameters, spec)
	}

	// A verdict with no usable parameters is treated as fully specified.
	if len(result.Parameters) == 0 {
		result.NeedsParameters = false
	}

	return result, nil
}

var (
	placeholderPattern = regexp.MustCompile(`[<\[{]([a-zA-Z_][a-zA-Z0-9_ ]*)[>\]}]`)
	vaguePhrases       = []string{"a specific", "a certain", "a given", "a particular"}
)

// heuristicDetect is the degraded path: explicit placeholders like <name> or
// {start date} become parameters, and vague phrasing yields a clarification
// request. Everything else is treated as fully specified.
func heuristicDetect(question string) *models.DetectionResult {
	result := &models.DetectionResult{Parameters: []models.ParameterSpec{}}

	seen := make(map[string]struct{})
	for _, match := range placeholderPattern.FindAllStringSubmatch(question, -1) {
		name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(match[1]), " ", "_"))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result.Parameters = append(result.Parameters, models.ParameterSpec{
			Name:     name,
			Label:    labelFromName(name),
			Kind:     models.ParameterText,
			Required: true,
		})
	}
	if len(result.Parameters) > 0 {
		result.NeedsParameters = true
		return result
	}

	lower := strings.ToLower(question)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lower, phrase) {
			result.NeedsParameters = true
			result.Parameters = append(result.Parameters, models.ParameterSpec{
				Name:     "value",
				Label:    "Value",
				Kind:     models.ParameterText,
				Required: true,
			})
			result.Clarification = "Which value should the query filter on?"
			return result
		}
	}

	return result
}

func labelFromName(name string) string {
	parts := strings.Split(strings.ReplaceAll(name, "-", "_"), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
