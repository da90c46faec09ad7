// Package mysql adapts MySQL and MariaDB targets.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func init() {
	datasource.Register(&driver{})
}

type driver struct{}

func (d *driver) Kind() models.EngineKind { return models.EngineMySQL }

func (d *driver) DriverName() string { return "mysql" }

func (d *driver) DSN(conn *models.Connection, password string) (string, error) {
	if conn.DatabaseName == "" {
		return "", apperrors.Validationf("database name is required for mysql connections")
	}

	cfg := gomysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", datasource.ResolveHost(conn.HostOrDefault()), conn.PortOrDefault())
	cfg.DBName = conn.DatabaseName
	cfg.ParseTime = true
	if conn.Username != nil {
		cfg.User = *conn.Username
	}
	cfg.Passwd = password
	if conn.SSLEnabled {
		cfg.TLSConfig = "true"
	}

	return cfg.FormatDSN(), nil
}

func (d *driver) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *driver) LimitClause(sqlText string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", sqlText, limit)
}

// IntrospectSchema reads the connection's own database from
// information_schema. MySQL exposes the primary key flag directly on the
// column row, so only foreign keys and row estimates need extra passes.
func (d *driver) IntrospectSchema(ctx context.Context, db *sql.DB, conn *models.Connection) ([]models.SchemaTable, []string, error) {
	tables, order, err := d.loadColumns(ctx, db, conn.DatabaseName)
	if err != nil {
		return nil, nil, &apperrors.ConnectivityError{Err: fmt.Errorf("introspect columns: %w", err)}
	}

	_ = d.markForeignKeys(ctx, db, conn.DatabaseName, tables)
	d.loadRowEstimates(ctx, db, conn.DatabaseName, tables)

	result := make([]models.SchemaTable, 0, len(order))
	for _, name := range order {
		result = append(result, *tables[name])
	}
	return result, nil, nil
}

func (d *driver) loadColumns(ctx context.Context, db *sql.DB, database string) (map[string]*models.SchemaTable, []string, error) {
	const query = `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_key
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = ? AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := db.QueryContext(ctx, query, database)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	tables := make(map[string]*models.SchemaTable)
	var order []string

	for rows.Next() {
		var tableName, columnName, dataType, isNullable, columnKey string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &columnKey); err != nil {
			return nil, nil, err
		}

		table, ok := tables[tableName]
		if !ok {
			table = &models.SchemaTable{Name: tableName}
			tables[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, models.SchemaColumn{
			Name:         columnName,
			DataType:     dataType,
			IsNullable:   strings.EqualFold(isNullable, "YES"),
			IsPrimaryKey: columnKey == "PRI",
		})
	}

	return tables, order, rows.Err()
}

func (d *driver) markForeignKeys(ctx context.Context, db *sql.DB, database string, tables map[string]*models.SchemaTable) error {
	const query = `
		SELECT table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND referenced_table_name IS NOT NULL`

	rows, err := db.QueryContext(ctx, query, database)
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

func (d *driver) loadRowEstimates(ctx context.Context, db *sql.DB, database string, tables map[string]*models.SchemaTable) {
	const query = `
		SELECT table_name, table_rows
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'`

	rows, err := db.QueryContext(ctx, query, database)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var estimate sql.NullInt64
		if err := rows.Scan(&tableName, &estimate); err != nil {
			return
		}
		if table, ok := tables[tableName]; ok && estimate.Valid {
			table.RowCount = &estimate.Int64
		}
	}
}
