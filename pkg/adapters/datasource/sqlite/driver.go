// Package sqlite adapts file-based SQLite targets through the CGO-free
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

func init() {
	datasource.Register(&driver{})
}

type driver struct{}

func (d *driver) Kind() models.EngineKind { return models.EngineSQLite }

func (d *driver) DriverName() string { return "sqlite" }

// DSN treats the connection's database name as the database file path.
// Host, port, and credentials do not apply.
func (d *driver) DSN(conn *models.Connection, _ string) (string, error) {
	if conn.DatabaseName == "" {
		return "", apperrors.Validationf("database file path is required for sqlite connections")
	}
	return conn.DatabaseName, nil
}

func (d *driver) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *driver) LimitClause(sqlText string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", sqlText, limit)
}

// IntrospectSchema lists user tables from sqlite_master and describes each
// one with table_info and foreign_key_list pragmas. A table whose pragma
// fails is reported as failed and skipped rather than aborting the walk.
func (d *driver) IntrospectSchema(ctx context.Context, db *sql.DB, _ *models.Connection) ([]models.SchemaTable, []string, error) {
	names, err := d.listTables(ctx, db)
	if err != nil {
		return nil, nil, &apperrors.ConnectivityError{Err: fmt.Errorf("list tables: %w", err)}
	}

	var (
		tables []models.SchemaTable
		failed []string
	)
	for _, name := range names {
		table, err := d.describeTable(ctx, db, name)
		if err != nil {
			failed = append(failed, name)
			continue
		}
		tables = append(tables, table)
	}

	return tables, failed, nil
}

func (d *driver) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	const query = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *driver) describeTable(ctx context.Context, db *sql.DB, name string) (models.SchemaTable, error) {
	table := models.SchemaTable{Name: name}

	columns, err := d.tableInfo(ctx, db, name)
	if err != nil {
		return table, err
	}
	table.Columns = columns

	// Foreign keys and the exact row count are enrichment; skip on error.
	d.markForeignKeys(ctx, db, name, table.Columns)
	if count, err := d.countRows(ctx, db, name); err == nil {
		table.RowCount = &count
	}

	return table, nil
}

func (d *driver) tableInfo(ctx context.Context, db *sql.DB, name string) ([]models.SchemaColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdentifier(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, models.SchemaColumn{
			Name:         colName,
			DataType:     colType,
			IsNullable:   notNull == 0,
			IsPrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (d *driver) markForeignKeys(ctx context.Context, db *sql.DB, name string, columns []models.SchemaColumn) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.QuoteIdentifier(name)))
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, seq              int
			refTable, from       string
			to                   sql.NullString
			onUpdate, onDelete   string
			match                string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return
		}

		refColumn := "rowid"
		if to.Valid {
			refColumn = to.String
		}
		ref := refTable + "." + refColumn
		for i := range columns {
			if columns[i].Name == from {
				columns[i].ForeignKey = &ref
				break
			}
		}
	}
}

func (d *driver) countRows(ctx context.Context, db *sql.DB, name string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdentifier(name))).Scan(&count)
	return count, err
}
