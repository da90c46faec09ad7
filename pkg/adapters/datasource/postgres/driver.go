// Package postgres adapts PostgreSQL targets through the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func init() {
	datasource.Register(&driver{})
}

type driver struct{}

func (d *driver) Kind() models.EngineKind { return models.EnginePostgres }

func (d *driver) DriverName() string { return "pgx" }

func (d *driver) DSN(conn *models.Connection, password string) (string, error) {
	if conn.DatabaseName == "" {
		return "", apperrors.Validationf("database name is required for postgres connections")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", datasource.ResolveHost(conn.HostOrDefault()), conn.PortOrDefault()),
		Path:   "/" + conn.DatabaseName,
	}
	if conn.Username != nil && *conn.Username != "" {
		u.User = url.UserPassword(*conn.Username, password)
	}

	sslMode := "disable"
	if conn.SSLEnabled {
		sslMode = "require"
	}
	u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()

	return u.String(), nil
}

func (d *driver) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *driver) LimitClause(sqlText string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", sqlText, limit)
}

// IntrospectSchema reads the public schema from the information_schema
// catalog: one pass for columns, one for primary keys, one for foreign keys,
// and planner row estimates from pg_class. The column pass is required; the
// enrichment passes degrade to absent metadata on failure.
func (d *driver) IntrospectSchema(ctx context.Context, db *sql.DB, _ *models.Connection) ([]models.SchemaTable, []string, error) {
	tables, order, err := d.loadColumns(ctx, db)
	if err != nil {
		return nil, nil, &apperrors.ConnectivityError{Err: fmt.Errorf("introspect columns: %w", err)}
	}

	_ = d.markPrimaryKeys(ctx, db, tables)
	_ = d.markForeignKeys(ctx, db, tables)
	d.loadRowEstimates(ctx, db, tables)

	result := make([]models.SchemaTable, 0, len(order))
	for _, name := range order {
		result = append(result, *tables[name])
	}
	return result, nil, nil
}

func (d *driver) loadColumns(ctx context.Context, db *sql.DB) (map[string]*models.SchemaTable, []string, error) {
	const query = `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	tables := make(map[string]*models.SchemaTable)
	var order []string

	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, nil, err
		}

		table, ok := tables[tableName]
		if !ok {
			table = &models.SchemaTable{Name: tableName}
			tables[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, models.SchemaColumn{
			Name:       columnName,
			DataType:   dataType,
			IsNullable: strings.EqualFold(isNullable, "YES"),
		})
	}

	return tables, order, rows.Err()
}

func (d *driver) markPrimaryKeys(ctx context.Context, db *sql.DB, tables map[string]*models.SchemaTable) error {
	const query = `
		SELECT kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public'`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return err
		}
		setPrimaryKey(tables, tableName, columnName)
	}
	return rows.Err()
}

func (d *driver) markForeignKeys(ctx context.Context, db *sql.DB, tables map[string]*models.SchemaTable) error {
	const query = `
		SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&tableName, &columnName, &refTable, &refColumn); err != nil {
			return err
		}
		setForeignKey(tables, tableName, columnName, refTable+"."+refColumn)
	}
	return rows.Err()
}

func (d *driver) loadRowEstimates(ctx context.Context, db *sql.DB, tables map[string]*models.SchemaTable) {
	const query = `
		SELECT c.relname, c.reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relkind = 'r'`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var estimate int64
		if err := rows.Scan(&tableName, &estimate); err != nil {
			return
		}
		if table, ok := tables[tableName]; ok && estimate >= 0 {
			table.RowCount = &estimate
		}
	}
}

func setPrimaryKey(tables map[string]*models.SchemaTable, tableName, columnName string) {
	if table, ok := tables[tableName]; ok {
		for i := range table.Columns {
			if table.Columns[i].Name == columnName {
				table.Columns[i].IsPrimaryKey = true
				return
			}
		}
	}
}

func setForeignKey(tables map[string]*models.SchemaTable, tableName, columnName, ref string) {
	if table, ok := tables[tableName]; ok {
		for i := range table.Columns {
			if table.Columns[i].Name == columnName {
				table.Columns[i].ForeignKey = &ref
				return
			}
		}
	}
}
