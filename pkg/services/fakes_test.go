package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
)

// In-memory fakes with function-field overrides, shared across the service
// tests.

type fakeConnectionRepo struct {
	conns map[uuid.UUID]*models.Connection

	createErr error
	updateErr error
	touched   []uuid.UUID
}

func newFakeConnectionRepo(conns ...*models.Connection) *fakeConnectionRepo {
	repo := &fakeConnectionRepo{conns: make(map[uuid.UUID]*models.Connection)}
	for _, c := range conns {
		repo.conns[c.ID] = c
	}
	return repo
}

func (f *fakeConnectionRepo) Create(_ context.Context, conn *models.Connection) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.conns[conn.ID] = conn
	return nil
}

func (f *fakeConnectionRepo) GetByID(_ context.Context, userID string, id uuid.UUID) (*models.Connection, error) {
	conn, ok := f.conns[id]
	if !ok || conn.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	clone := *conn
	return &clone, nil
}

func (f *fakeConnectionRepo) List(_ context.Context, userID string) ([]*models.Connection, error) {
	var out []*models.Connection
	for _, c := range f.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) Update(_ context.Context, conn *models.Connection) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.conns[conn.ID]; !ok {
		return apperrors.ErrNotFound
	}
	f.conns[conn.ID] = conn
	return nil
}

func (f *fakeConnectionRepo) Delete(_ context.Context, userID string, id uuid.UUID) error {
	conn, ok := f.conns[id]
	if !ok || conn.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(f.conns, id)
	return nil
}

func (f *fakeConnectionRepo) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

var _ repositories.ConnectionRepository = (*fakeConnectionRepo)(nil)

type fakeSchemaCache struct {
	snapshots map[uuid.UUID]*models.SchemaSnapshot
	upsertErr error
	getErr    error
}

func newFakeSchemaCache() *fakeSchemaCache {
	return &fakeSchemaCache{snapshots: make(map[uuid.UUID]*models.SchemaSnapshot)}
}

func (f *fakeSchemaCache) Upsert(_ context.Context, connectionID uuid.UUID, snapshot *models.SchemaSnapshot) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.snapshots[connectionID] = snapshot
	return nil
}

func (f *fakeSchemaCache) Get(_ context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	snapshot, ok := f.snapshots[connectionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeSchemaCache) Delete(_ context.Context, connectionID uuid.UUID) error {
	delete(f.snapshots, connectionID)
	return nil
}

var _ repositories.SchemaCacheRepository = (*fakeSchemaCache)(nil)

type fakeHistoryRepo struct {
	entries    []*models.HistoryEntry
	createErr  error
	favorites  map[uuid.UUID]bool
	listResult []*models.HistoryEntry
}

func (f *fakeHistoryRepo) Create(_ context.Context, entry *models.HistoryEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryRepo) List(_ context.Context, _ string, _ repositories.HistoryFilters) ([]*models.HistoryEntry, int, error) {
	return f.listResult, len(f.listResult), nil
}

func (f *fakeHistoryRepo) ToggleFavorite(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if f.favorites == nil {
		f.favorites = make(map[uuid.UUID]bool)
	}
	f.favorites[id] = !f.favorites[id]
	return f.favorites[id], nil
}

var _ repositories.HistoryRepository = (*fakeHistoryRepo)(nil)

type fakeFeedbackRepo struct {
	records   []*models.FeedbackRecord
	createErr error
	listErr   error
}

func (f *fakeFeedbackRepo) Create(_ context.Context, record *models.FeedbackRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	record.ID = uuid.New()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeFeedbackRepo) List(_ context.Context, userID string, connectionID *uuid.UUID, _ int) ([]*models.FeedbackRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.FeedbackRecord
	for _, r := range f.records {
		if r.UserID != userID {
			continue
		}
		if connectionID != nil && r.ConnectionID != *connectionID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var _ repositories.FeedbackRepository = (*fakeFeedbackRepo)(nil)

type fakeExecutor struct {
	testConnectionFunc func(ctx context.Context, conn *models.Connection, password string) error
	introspectFunc     func(ctx context.Context, conn *models.Connection, password string) ([]models.SchemaTable, []string, error)
	previewFunc        func(ctx context.Context, conn *models.Connection, password, table string, limit int) (*models.ExecutionResult, error)
	executeFunc        func(ctx context.Context, conn *models.Connection, password, sqlText string) (*models.ExecutionResult, error)

	executedSQL []string
}

func (f *fakeExecutor) TestConnection(ctx context.Context, conn *models.Connection, password string) error {
	if f.testConnectionFunc != nil {
		return f.testConnectionFunc(ctx, conn, password)
	}
	return nil
}

func (f *fakeExecutor) Introspect(ctx context.Context, conn *models.Connection, password string) ([]models.SchemaTable, []string, error) {
	if f.introspectFunc != nil {
		return f.introspectFunc(ctx, conn, password)
	}
	return nil, nil, nil
}

func (f *fakeExecutor) Preview(ctx context.Context, conn *models.Connection, password, table string, limit int) (*models.ExecutionResult, error) {
	if f.previewFunc != nil {
		return f.previewFunc(ctx, conn, password, table, limit)
	}
	return &models.ExecutionResult{}, nil
}

func (f *fakeExecutor) Execute(ctx context.Context, conn *models.Connection, password, sqlText string) (*models.ExecutionResult, error) {
	f.executedSQL = append(f.executedSQL, sqlText)
	if f.executeFunc != nil {
		return f.executeFunc(ctx, conn, password, sqlText)
	}
	return &models.ExecutionResult{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}, RowCount: 1}, nil
}

var _ Executor = (*fakeExecutor)(nil)

type fakeEvictor struct {
	evicted []uuid.UUID
}

func (f *fakeEvictor) Evict(connectionID uuid.UUID) {
	f.evicted = append(f.evicted, connectionID)
}

var _ PoolEvictor = (*fakeEvictor)(nil)

const testLLMTimeout = 5 * time.Second
