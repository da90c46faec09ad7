package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/audit"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	sqlcheck "github.com/sqlagent-dev/sqlagent-engine/pkg/sql"
)

// AskRequest is one question put to the full pipeline.
type AskRequest struct {
	ConnectionID uuid.UUID         `json:"connection_id"`
	Question     string            `json:"natural_language"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	AutoExecute  bool              `json:"auto_execute"`
}

// AskResponse is the pipeline's answer. When the detector decides the
// question is underspecified, only the parameter fields are populated and no
// SQL is generated.
type AskResponse struct {
	NeedsParameters bool                   `json:"needs_parameters,omitempty"`
	Parameters      []models.ParameterSpec `json:"parameters,omitempty"`
	Clarification   string                 `json:"clarification,omitempty"`

	SQL         string                  `json:"sql,omitempty"`
	Explanation string                  `json:"explanation,omitempty"`
	Result      *models.ExecutionResult `json:"result,omitempty"`

	// Error carries an execution failure when generation itself succeeded,
	// so the caller still receives the SQL for inspection.
	Error string `json:"error,omitempty"`
}

// PipelineService chains detection, generation, validation, execution, and
// audit into the ask flow, and validates+executes caller-supplied SQL.
type PipelineService interface {
	Ask(ctx context.Context, userID string, req AskRequest) (*AskResponse, error)
	ExecuteSQL(ctx context.Context, userID string, connectionID uuid.UUID, sqlText string) (*models.ExecutionResult, error)
}

type pipelineService struct {
	connections ConnectionService
	params      ParameterService
	generator   GeneratorService
	history     HistoryService
	executor    Executor
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

func NewPipelineService(
	connections ConnectionService,
	params ParameterService,
	generator GeneratorService,
	history HistoryService,
	executor Executor,
	logger *zap.Logger,
) PipelineService {
	return &pipelineService{
		connections: connections,
		params:      params,
		generator:   generator,
		history:     history,
		executor:    executor,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger.Named("pipeline"),
	}
}

var _ PipelineService = (*pipelineService)(nil)

func (s *pipelineService) Ask(ctx context.Context, userID string, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.Validationf("natural_language is required")
	}

	conn, password, err := s.connections.Credentials(ctx, userID, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	// Detection runs only when the caller supplied no values; a request
	// with bound parameters is already answering a previous detection.
	if len(req.Parameters) == 0 {
		detection, err := s.params.Detect(ctx, userID, req.ConnectionID, req.Question)
		if err != nil {
			return nil, err
		}
		if detection.NeedsParameters {
			return &AskResponse{
				NeedsParameters: true,
				Parameters:      detection.Parameters,
				Clarification:   detection.Clarification,
			}, nil
		}
	}

	// Every attempt past detection lands in the audit trail, whichever stage
	// it ends at: generation failure, rejection, execution error, timeout,
	// or success.
	var (
		sqlText string
		result  *models.ExecutionResult
		runErr  error
	)
	defer func() {
		s.recordAttempt(ctx, userID, conn, &req.Question, sqlText, result, runErr)
	}()

	generated, err := s.generator.Generate(ctx, userID, req.ConnectionID, req.Question, req.Parameters)
	if err != nil {
		// A rejected generation may still carry partial SQL worth auditing.
		var generation *apperrors.GenerationError
		if errors.As(err, &generation) {
			sqlText = generation.SQL
		}
		runErr = err
		return nil, err
	}
	sqlText = generated.SQL

	validated, err := sqlcheck.Validate(generated.SQL, conn.IsReadOnly)
	if err != nil {
		s.auditViolation(userID, conn.ID, generated.SQL, err)
		runErr = err
		return nil, err
	}
	sqlText = validated

	response := &AskResponse{
		SQL:         validated,
		Explanation: generated.Explanation,
	}
	if !req.AutoExecute {
		return response, nil
	}

	result, runErr = s.executor.Execute(ctx, conn, password, validated)
	s.touchLastUsed(ctx, conn.ID)

	if runErr != nil {
		// Generation succeeded, so surface the SQL alongside the failure
		// instead of discarding the whole attempt.
		response.Error = runErr.Error()
		result = nil
		return response, nil
	}

	response.Result = result
	return response, nil
}

func (s *pipelineService) ExecuteSQL(ctx context.Context, userID string, connectionID uuid.UUID, sqlText string) (*models.ExecutionResult, error) {
	conn, password, err := s.connections.Credentials(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	validated, err := sqlcheck.Validate(sqlText, conn.IsReadOnly)
	if err != nil {
		s.auditViolation(userID, conn.ID, sqlText, err)
		s.recordAttempt(ctx, userID, conn, nil, sqlText, nil, err)
		return nil, err
	}

	result, execErr := s.executor.Execute(ctx, conn, password, validated)
	s.touchLastUsed(ctx, conn.ID)
	s.recordAttempt(ctx, userID, conn, nil, validated, result, execErr)
	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

func (s *pipelineService) auditViolation(userID string, connectionID uuid.UUID, sqlText string, err error) {
	var violation *apperrors.SafetyViolation
	if errors.As(err, &violation) {
		s.auditor.LogSafetyViolation(userID, connectionID, string(violation.Reason), sqlText)
	}
}

// recordAttempt writes the audit entry for one run. Fields for stages that
// never ran stay null. Best-effort: recorder failures are logged inside the
// history service and never surface.
func (s *pipelineService) recordAttempt(
	ctx context.Context,
	userID string,
	conn *models.Connection,
	question *string,
	sqlText string,
	result *models.ExecutionResult,
	runErr error,
) {
	entry := &models.HistoryEntry{
		UserID:       userID,
		ConnectionID: conn.ID,
		ExecutedAt:   time.Now().UTC(),
		Status:       models.StatusSuccess,
	}
	if sqlText != "" {
		entry.GeneratedSQL = &sqlText
	}
	if question != nil && *question != "" {
		entry.NaturalLanguage = question
	}

	switch {
	case runErr == nil && result != nil:
		entry.ExecutionTimeMs = &result.ElapsedMs
		entry.RowCount = &result.RowCount
	case runErr == nil:
		// Generated but not executed; execution fields stay null.
	default:
		entry.Status = models.StatusError
		var timeoutErr *apperrors.TimeoutError
		if errors.As(runErr, &timeoutErr) {
			entry.Status = models.StatusTimeout
		}
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}

	s.history.Record(ctx, entry)
}

func (s *pipelineService) touchLastUsed(ctx context.Context, id uuid.UUID) {
	if err := s.connections.TouchLastUsed(ctx, id); err != nil {
		s.logger.Debug("failed to update last-used marker", zap.Error(err))
	}
}
