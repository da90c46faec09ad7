// Package mssql adapts Microsoft SQL Server targets.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func init() {
	datasource.Register(&driver{})
}

type driver struct{}

func (d *driver) Kind() models.EngineKind { return models.EngineMSSQL }

func (d *driver) DriverName() string { return "sqlserver" }

func (d *driver) DSN(conn *models.Connection, password string) (string, error) {
	if conn.DatabaseName == "" {
		return "", apperrors.Validationf("database name is required for mssql connections")
	}

	query := url.Values{"database": []string{conn.DatabaseName}}
	if conn.SSLEnabled {
		query.Set("encrypt", "true")
	} else {
		query.Set("encrypt", "disable")
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", datasource.ResolveHost(conn.HostOrDefault()), conn.PortOrDefault()),
		RawQuery: query.Encode(),
	}
	if conn.Username != nil && *conn.Username != "" {
		u.User = url.UserPassword(*conn.Username, password)
	}

	return u.String(), nil
}

func (d *driver) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// LimitClause wraps the query in a TOP (n) subselect; SQL Server has no
// trailing LIMIT syntax.
func (d *driver) LimitClause(sqlText string, limit int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _preview", limit, sqlText)
}

// IntrospectSchema reads the dbo schema from INFORMATION_SCHEMA with the
// same pass structure as the postgres driver, plus partition row counts
// from sys.partitions.
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
		SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN INFORMATION_SCHEMA.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA = 'dbo' AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

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
		SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = 'dbo'`

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
		if table, ok := tables[tableName]; ok {
			for i := range table.Columns {
				if table.Columns[i].Name == columnName {
					table.Columns[i].IsPrimaryKey = true
					break
				}
			}
		}
	}
	return rows.Err()
}

func (d *driver) markForeignKeys(ctx context.Context, db *sql.DB, tables map[string]*models.SchemaTable) error {
	const query = `
		SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME, rkcu.TABLE_NAME, rkcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE rkcu
		  ON rc.UNIQUE_CONSTRAINT_NAME = rkcu.CONSTRAINT_NAME AND kcu.ORDINAL_POSITION = rkcu.ORDINAL_POSITION`

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

		table, ok := tables[tableName]
		if !ok {
			continue
		}
		ref := refTable + "." + refColumn
		for i := range table.Columns {
			if table.Columns[i].Name == columnName {
				table.Columns[i].ForeignKey = &ref
				break
			}
		}
	}
	return rows.Err()
}

func (d *driver) loadRowEstimates(ctx context.Context, db *sql.DB, tables map[string]*models.SchemaTable) {
	const query = `
		SELECT t.name, SUM(p.rows)
		FROM sys.tables t
		JOIN sys.partitions p ON p.object_id = t.object_id
		WHERE p.index_id IN (0, 1)
		GROUP BY t.name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var count sql.NullInt64
		if err := rows.Scan(&tableName, &count); err != nil {
			return
		}
		if table, ok := tables[tableName]; ok && count.Valid {
			table.RowCount = &count.Int64
		}
	}
}
