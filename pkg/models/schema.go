package models

import (
	"strings"
	"time"
)

// SchemaColumn describes one column of an introspected table.
type SchemaColumn struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	// ForeignKey is "table.column" when the column references another table.
	ForeignKey *string `json:"foreign_key,omitempty"`
}

// SchemaTable describes one introspected table. Columns keep their ordinal
// position from the catalog.
type SchemaTable struct {
	Name     string         `json:"name"`
	Columns  []SchemaColumn `json:"columns"`
	RowCount *int64         `json:"row_count,omitempty"`
}

// SchemaSnapshot is the normalized, cached description of a target database.
// Snapshots are replaced wholesale on introspection, never patched.
type SchemaSnapshot struct {
	Tables   []SchemaTable `json:"tables"`
	CachedAt time.Time     `json:"cached_at"`
}

// Table returns the named table, matched case-insensitively.
func (s *SchemaSnapshot) Table(name string) *SchemaTable {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasColumn reports whether the named table has the named column.
func (s *SchemaSnapshot) HasColumn(table, column string) bool {
	t := s.Table(table)
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, column) {
			return true
		}
	}
	return false
}
