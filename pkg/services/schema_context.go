package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

// relevanceTableThreshold is the snapshot size above which the schema context
// is filtered down to tables that look related to the question.
const relevanceTableThreshold = 40

// formatSchemaContext renders a snapshot into the compact text form used in
// prompts: one block per table with typed columns, PK/FK markers, and the
// approximate row count.
func formatSchemaContext(snapshot *models.SchemaSnapshot) string {
	var b strings.Builder

	for _, table := range snapshot.Tables {
		b.WriteString("Table: " + table.Name)
		if table.RowCount != nil {
			fmt.Fprintf(&b, " (%d rows)", *table.RowCount)
		}
		b.WriteString("\n")

		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  - %s: %s", col.Name, col.DataType)
			if col.IsPrimaryKey {
				b.WriteString(" (PK)")
			}
			if col.ForeignKey != nil {
				b.WriteString(" -> " + *col.ForeignKey)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

var wordPattern = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// relevantSnapshot narrows a large snapshot to the tables a question appears
// to touch, matching table names in singular and plural form plus column
// names. Small snapshots and questions that match nothing pass through
// unfiltered so the model never loses context it might need.
func relevantSnapshot(question string, snapshot *models.SchemaSnapshot) *models.SchemaSnapshot {
	if len(snapshot.Tables) <= relevanceTableThreshold {
		return snapshot
	}

	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(question), -1) {
		words[w] = struct{}{}
		words[inflection.Singular(w)] = struct{}{}
	}

	matches := func(name string) bool {
		lower := strings.ToLower(name)
		if _, ok := words[lower]; ok {
			return true
		}
		if _, ok := words[inflection.Singular(lower)]; ok {
			return true
		}
		_, ok := words[strings.ToLower(inflection.Plural(lower))]
		return ok
	}

	var kept []models.SchemaTable
	for _, table := range snapshot.Tables {
		if matches(table.Name) {
			kept = append(kept, table)
			continue
		}
		for _, col := range table.Columns {
			if matches(col.Name) {
				kept = append(kept, table)
				break
			}
		}
	}

	if len(kept) == 0 {
		return snapshot
	}
	return &models.SchemaSnapshot{Tables: kept, CachedAt: snapshot.CachedAt}
}
