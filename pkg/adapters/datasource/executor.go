package datasource

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// ExecutorConfig bounds query execution.
type ExecutorConfig struct {
	StatementTimeout time.Duration
	AcquireTimeout   time.Duration
	MaxRows          int
}

// Executor runs validated SQL against target databases through the
// connection manager, enforcing acquire timeouts, statement timeouts, and a
// row cap that is shared by every engine.
type Executor struct {
	manager *Manager
	cfg     ExecutorConfig
	logger  *zap.Logger
}

func NewExecutor(manager *Manager, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	return &Executor{manager: manager, cfg: cfg, logger: logger}
}

// Execute runs a single validated statement and returns normalized rows,
// capped at MaxRows. Reading one row past the cap distinguishes truncation
// from an exact fit.
func (e *Executor) Execute(ctx context.Context, conn *models.Connection, password, sqlText string) (*models.ExecutionResult, error) {
	db, _, err := e.manager.Get(ctx, conn, password)
	if err != nil {
		return nil, err
	}

	sqlConn, err := e.acquire(ctx, db)
	if err != nil {
		return nil, err
	}
	defer sqlConn.Close()

	queryCtx, cancel := context.WithTimeout(ctx, e.cfg.StatementTimeout)
	defer cancel()

	start := time.Now()
	rows, err := sqlConn.QueryContext(queryCtx, sqlText)
	if err != nil {
		return nil, e.classifyExecError(queryCtx, err)
	}
	defer rows.Close()

	result, err := e.scanRows(queryCtx, rows)
	if err != nil {
		return nil, err
	}
	result.ElapsedMs = time.Since(start).Milliseconds()

	e.logger.Debug("executed statement",
		zap.String("connectionID", conn.ID.String()),
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Int64("elapsedMs", result.ElapsedMs),
	)

	return result, nil
}

// TestConnection verifies the target database is reachable with the stored
// credentials.
func (e *Executor) TestConnection(ctx context.Context, conn *models.Connection, password string) error {
	_, _, err := e.manager.Get(ctx, conn, password)
	return err
}

// Introspect walks the target database catalog through the engine driver.
func (e *Executor) Introspect(ctx context.Context, conn *models.Connection, password string) ([]models.SchemaTable, []string, error) {
	db, driver, err := e.manager.Get(ctx, conn, password)
	if err != nil {
		return nil, nil, err
	}
	return driver.IntrospectSchema(ctx, db, conn)
}

// Preview returns the first rows of a table using the engine's identifier
// quoting and limit dialect.
func (e *Executor) Preview(ctx context.Context, conn *models.Connection, password, table string, limit int) (*models.ExecutionResult, error) {
	if limit <= 0 || limit > e.cfg.MaxRows {
		limit = e.cfg.MaxRows
	}

	_, driver, err := e.manager.Get(ctx, conn, password)
	if err != nil {
		return nil, err
	}

	query := driver.LimitClause("SELECT * FROM "+driver.QuoteIdentifier(table), limit)
	return e.Execute(ctx, conn, password, query)
}

// acquire checks a connection out of the pool within the acquire timeout.
// Hitting that deadline while the request is still live means the pool is
// exhausted, not that the caller gave up.
func (e *Executor) acquire(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, e.cfg.AcquireTimeout)
	defer cancel()

	sqlConn, err := db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperrors.ErrPoolExhausted
		}
		return nil, &apperrors.ConnectivityError{Err: err}
	}
	return sqlConn, nil
}

func (e *Executor) classifyExecError(queryCtx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
		return &apperrors.TimeoutError{Origin: apperrors.TimeoutOriginExecution}
	}
	return &apperrors.ExecutionError{Message: err.Error()}
}

func (e *Executor) scanRows(ctx context.Context, rows *sql.Rows) (*models.ExecutionResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, &apperrors.ExecutionError{Message: err.Error()}
	}

	result := &models.ExecutionResult{
		Columns: columns,
		Rows:    make([][]any, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= e.cfg.MaxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &apperrors.ExecutionError{Message: err.Error()}
		}

		row := make([]any, len(columns))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, e.classifyExecError(ctx, err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}
