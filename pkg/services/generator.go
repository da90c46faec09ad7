package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/audit"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/llm"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
	sqlcheck "github.com/sqlagent-dev/sqlagent-engine/pkg/sql"
)

const generationSystemPrompt = `You are a SQL expert. Generate SQL queries based on natural language questions.

Database type: %s

Database Schema:
%s
Rules:
1. Generate valid SQL for %s
2. Use appropriate JOIN types when needed
3. Include helpful column aliases
4. Limit results to 1000 rows by default unless specified
5. Use proper date/time functions for the database type
6. Be careful with NULL handling
7. Only generate SELECT queries (read-only)
8. Inline every provided parameter value as a properly quoted literal; never emit placeholders such as $1, ? or :name
%s
Respond in JSON format:
{"sql": "YOUR SQL QUERY", "explanation": "Brief explanation of what the query does"}`

const feedbackExampleLimit = 5

// GeneratorService turns a question plus schema context into one SQL
// statement.
type GeneratorService interface {
	Generate(ctx context.Context, userID string, connectionID uuid.UUID, question string, params map[string]string) (*models.GeneratedQuery, error)
}

type generatorService struct {
	connections ConnectionService
	schemas     SchemaService
	feedback    repositories.FeedbackRepository
	client      llm.Client
	timeout     time.Duration
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

func NewGeneratorService(
	connections ConnectionService,
	schemas SchemaService,
	feedback repositories.FeedbackRepository,
	client llm.Client,
	timeout time.Duration,
	logger *zap.Logger,
) GeneratorService {
	return &generatorService{
		connections: connections,
		schemas:     schemas,
		feedback:    feedback,
		client:      client,
		timeout:     timeout,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger.Named("generator"),
	}
}

var _ GeneratorService = (*generatorService)(nil)

type generationPayload struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

func (s *generatorService) Generate(ctx context.Context, userID string, connectionID uuid.UUID, question string, params map[string]string) (*models.GeneratedQuery, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.Validationf("question is required")
	}
	if err := sqlcheck.ScreenParameterValues(params); err != nil {
		var injection *sqlcheck.InjectionError
		if errors.As(err, &injection) {
			s.auditor.LogInjectionAttempt(userID, connectionID, injection.Param, injection.Fingerprint)
		}
		return nil, err
	}

	conn, err := s.connections.Get(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.schemas.GetOrIntrospect(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(generationSystemPrompt,
		conn.Engine,
		formatSchemaContext(relevantSnapshot(question, snapshot)),
		conn.Engine,
		s.promptExtras(ctx, userID, connectionID, params),
	)

	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Complete(llmCtx, llm.CompletionRequest{
		System:      system,
		Prompt:      question,
		Temperature: 0.1,
		JSONOnly:    true,
	})
	if err != nil {
		if llm.IsTimeout(err) {
			return nil, &apperrors.TimeoutError{Origin: apperrors.TimeoutOriginGeneration}
		}
		return nil, &apperrors.GenerationError{Message: "SQL generation failed", Err: err}
	}

	payload, err := llm.ParseJSONResponse[generationPayload](response)
	if err != nil {
		return nil, &apperrors.GenerationError{Message: "model returned no usable JSON", Err: err}
	}
	if strings.TrimSpace(payload.SQL) == "" {
		return nil, &apperrors.GenerationError{
			Message:     "model returned no SQL",
			Explanation: payload.Explanation,
		}
	}

	if leftover := findPlaceholders(payload.SQL); len(leftover) > 0 {
		return nil, &apperrors.GenerationError{
			Message: fmt.Sprintf("generated SQL still contains placeholders: %s", strings.Join(leftover, ", ")),
			SQL:     payload.SQL,
		}
	}
	if err := sqlcheck.VerifyIdentifiers(payload.SQL, snapshot); err != nil {
		return nil, err
	}

	s.logger.Debug("generated SQL",
		zap.String("connectionID", connectionID.String()),
		zap.Int("sqlLen", len(payload.SQL)),
	)

	return &models.GeneratedQuery{
		SQL:         payload.SQL,
		Explanation: payload.Explanation,
		Bindings:    params,
	}, nil
}

// promptExtras renders the optional prompt sections: bound parameter values
// and recent corrections for this connection as few-shot examples. Feedback
// lookup failures only cost the examples.
func (s *generatorService) promptExtras(ctx context.Context, userID string, connectionID uuid.UUID, params map[string]string) string {
	var b strings.Builder

	if len(params) > 0 {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nParameter values to use:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %s = %s\n", name, params[name])
		}
	}

	records, err := s.feedback.List(ctx, userID, &connectionID, feedbackExampleLimit)
	if err != nil {
		s.logger.Warn("feedback lookup failed", zap.Error(err))
	} else if len(records) > 0 {
		b.WriteString("\nPast corrections from this user (prefer the corrected form):\n")
		for _, record := range records {
			fmt.Fprintf(&b, "Question: %s\nIncorrect: %s\nCorrect: %s\n\n",
				record.NaturalLanguage, record.OriginalSQL, record.CorrectedSQL)
		}
	}

	return b.String()
}

var (
	dollarPlaceholderPattern = regexp.MustCompile(`\$\d+`)
	namedPlaceholderPattern  = regexp.MustCompile(`(^|[^:\w]):[a-zA-Z_]\w*`)
	bracePlaceholderPattern  = regexp.MustCompile(`\{\{?\s*[a-zA-Z_]\w*\s*\}?\}`)
)

// findPlaceholders reports unbound placeholder tokens left in generated SQL.
// String literals are blanked first so a literal question mark or colon does
// not trip the check. The [^:\w] guard keeps postgres ::type casts out.
func findPlaceholders(sqlText string) []string {
	bare := blankStringLiterals(sqlText)

	var found []string
	found = append(found, dollarPlaceholderPattern.FindAllString(bare, -1)...)
	for _, match := range namedPlaceholderPattern.FindAllStringSubmatch(bare, -1) {
		found = append(found, strings.TrimSpace(match[0]))
	}
	found = append(found, bracePlaceholderPattern.FindAllString(bare, -1)...)
	if strings.Contains(bare, "?") {
		found = append(found, "?")
	}
	return found
}

// blankStringLiterals replaces the contents of quoted literals with spaces,
// preserving offsets.
func blankStringLiterals(sqlText string) string {
	out := []rune(sqlText)
	inSingle, inDouble := false, false

	for i, ch := range out {
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				out[i] = ' '
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			} else {
				out[i] = ' '
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		}
	}
	return string(out)
}
