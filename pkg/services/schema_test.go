package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/crypto"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func ordersTable() models.SchemaTable {
	rowCount := int64(42)
	return models.SchemaTable{
		Name: "orders",
		Columns: []models.SchemaColumn{
			{Name: "id", DataType: "integer", IsPrimaryKey: true},
			{Name: "customer", DataType: "text", IsNullable: true},
			{Name: "total", DataType: "numeric", IsNullable: true},
		},
		RowCount: &rowCount,
	}
}

type schemaFixture struct {
	repo     *fakeConnectionRepo
	cache    *fakeSchemaCache
	executor *fakeExecutor
	svc      SchemaService
	conn     *models.Connection
}

func newSchemaFixture(t *testing.T) *schemaFixture {
	t.Helper()

	conn, err := newConnectionsOnly().Register(context.Background(), testUser, postgresInput())
	require.NoError(t, err)

	// Rebuild the stack around a shared repo so the schema service sees the
	// registered connection.
	repo := newFakeConnectionRepo(conn)
	executor := &fakeExecutor{
		introspectFunc: func(_ context.Context, _ *models.Connection, _ string) ([]models.SchemaTable, []string, error) {
			return []models.SchemaTable{ordersTable()}, nil, nil
		},
	}
	cache := newFakeSchemaCache()
	encryptor, _ := crypto.NewEncryptor("unit-test-passphrase")
	connections := NewConnectionService(repo, cache, encryptor, executor, &fakeEvictor{}, zap.NewNop())
	svc := NewSchemaService(connections, cache, executor, zap.NewNop())

	return &schemaFixture{repo: repo, cache: cache, executor: executor, svc: svc, conn: conn}
}

func newConnectionsOnly() ConnectionService {
	encryptor, _ := crypto.NewEncryptor("unit-test-passphrase")
	return NewConnectionService(newFakeConnectionRepo(), newFakeSchemaCache(), encryptor, &fakeExecutor{}, &fakeEvictor{}, zap.NewNop())
}

func TestRefreshCachesSnapshot(t *testing.T) {
	f := newSchemaFixture(t)

	snapshot, err := f.svc.Refresh(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)
	assert.Equal(t, "orders", snapshot.Tables[0].Name)
	assert.False(t, snapshot.CachedAt.IsZero())

	cached, err := f.cache.Get(context.Background(), f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Tables, cached.Tables)
}

func TestRefreshPartialStillCaches(t *testing.T) {
	f := newSchemaFixture(t)
	f.executor.introspectFunc = func(_ context.Context, _ *models.Connection, _ string) ([]models.SchemaTable, []string, error) {
		return []models.SchemaTable{ordersTable()}, []string{"broken_table"}, nil
	}

	snapshot, err := f.svc.Refresh(context.Background(), testUser, f.conn.ID)
	require.Error(t, err)

	var partial *apperrors.PartialSchemaError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"broken_table"}, partial.FailedTables)

	require.NotNil(t, snapshot)
	_, cacheErr := f.cache.Get(context.Background(), f.conn.ID)
	assert.NoError(t, cacheErr)
}

func TestRefreshConnectivityFailure(t *testing.T) {
	f := newSchemaFixture(t)
	f.executor.introspectFunc = func(_ context.Context, _ *models.Connection, _ string) ([]models.SchemaTable, []string, error) {
		return nil, nil, &apperrors.ConnectivityError{Err: errors.New("dial tcp: refused")}
	}

	_, err := f.svc.Refresh(context.Background(), testUser, f.conn.ID)
	var connErr *apperrors.ConnectivityError
	assert.True(t, errors.As(err, &connErr))
}

func TestGetCachedBeforeIntrospection(t *testing.T) {
	f := newSchemaFixture(t)

	_, err := f.svc.GetCached(context.Background(), testUser, f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotIntrospected)
}

func TestGetCachedForeignConnection(t *testing.T) {
	f := newSchemaFixture(t)

	_, err := f.svc.GetCached(context.Background(), "someone-else", f.conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrIntrospectOnMiss(t *testing.T) {
	f := newSchemaFixture(t)

	snapshot, err := f.svc.GetOrIntrospect(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)

	// Second call must serve the cache, not introspect again.
	f.executor.introspectFunc = func(_ context.Context, _ *models.Connection, _ string) ([]models.SchemaTable, []string, error) {
		t.Fatal("unexpected second introspection")
		return nil, nil, nil
	}
	_, err = f.svc.GetOrIntrospect(context.Background(), testUser, f.conn.ID)
	assert.NoError(t, err)
}

func TestGetOrIntrospectToleratesPartial(t *testing.T) {
	f := newSchemaFixture(t)
	f.executor.introspectFunc = func(_ context.Context, _ *models.Connection, _ string) ([]models.SchemaTable, []string, error) {
		return []models.SchemaTable{ordersTable()}, []string{"broken_table"}, nil
	}

	snapshot, err := f.svc.GetOrIntrospect(context.Background(), testUser, f.conn.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)
}

func TestPreviewUnknownTable(t *testing.T) {
	f := newSchemaFixture(t)

	_, err := f.svc.Preview(context.Background(), testUser, f.conn.ID, "no_such_table", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPreviewResolvesTableCaseInsensitively(t *testing.T) {
	f := newSchemaFixture(t)

	var previewed string
	f.executor.previewFunc = func(_ context.Context, _ *models.Connection, _ string, table string, limit int) (*models.ExecutionResult, error) {
		previewed = table
		return &models.ExecutionResult{RowCount: limit}, nil
	}

	result, err := f.svc.Preview(context.Background(), testUser, f.conn.ID, "ORDERS", 10)
	require.NoError(t, err)
	assert.Equal(t, "orders", previewed)
	assert.Equal(t, 10, result.RowCount)
}
