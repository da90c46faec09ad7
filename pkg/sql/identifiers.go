package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/models"
)

var (
	// tableRefPattern captures the identifier after FROM or JOIN along with an
	// optional alias. Quoted and schema-qualified names are tolerated.
	tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+("?[\w.]+"?)(?:\s+(?:AS\s+)?([a-zA-Z_]\w*))?`)

	// qualifiedColumnPattern captures table.column references.
	qualifiedColumnPattern = regexp.MustCompile(`\b([a-zA-Z_]\w*)\.([a-zA-Z_]\w*)\b`)
)

// aliasKeywords are tokens that can follow a table reference but are never an
// alias.
var aliasKeywords = map[string]struct{}{
	"WHERE": {}, "ON": {}, "USING": {}, "GROUP": {}, "ORDER": {}, "LIMIT": {},
	"HAVING": {}, "JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {},
	"CROSS": {}, "UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "SET": {}, "AS": {},
	"OFFSET": {}, "FETCH": {}, "WINDOW": {},
}

// ExtractTableRefs returns the distinct table names referenced by FROM and
// JOIN clauses, unquoted and without schema qualifiers.
func ExtractTableRefs(sqlText string) []string {
	seen := make(map[string]struct{})
	var tables []string

	for _, match := range tableRefPattern.FindAllStringSubmatch(sqlText, -1) {
		name := bareTableName(match[1])
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tables = append(tables, name)
	}

	return tables
}

// VerifyIdentifiers checks the statement's table and qualified column
// references against the schema snapshot. References whose qualifier is an
// alias or a CTE name are resolved or skipped rather than rejected, so the
// check only fails on identifiers that are provably absent.
func VerifyIdentifiers(sqlText string, snapshot *models.SchemaSnapshot) error {
	if snapshot == nil || len(snapshot.Tables) == 0 {
		return nil
	}

	stripped := StripComments(sqlText)
	cteNames := extractCTENames(stripped)

	aliases := make(map[string]string)
	for _, match := range tableRefPattern.FindAllStringSubmatch(stripped, -1) {
		table := bareTableName(match[1])
		if table == "" {
			continue
		}
		if _, isCTE := cteNames[strings.ToLower(table)]; isCTE {
			continue
		}
		if snapshot.Table(table) == nil {
			return &apperrors.GenerationError{
				Message: fmt.Sprintf("generated SQL references unknown table %q", table),
			}
		}
		alias := match[2]
		if alias != "" {
			if _, kw := aliasKeywords[strings.ToUpper(alias)]; !kw {
				aliases[strings.ToLower(alias)] = table
			}
		}
		aliases[strings.ToLower(table)] = table
	}

	for _, match := range qualifiedColumnPattern.FindAllStringSubmatch(stripped, -1) {
		qualifier := strings.ToLower(match[1])
		column := match[2]

		if _, isCTE := cteNames[qualifier]; isCTE {
			continue
		}
		table, ok := aliases[qualifier]
		if !ok {
			// Unresolvable qualifier (subquery alias, function call), skip.
			continue
		}
		if !snapshot.HasColumn(table, column) {
			return &apperrors.GenerationError{
				Message: fmt.Sprintf("generated SQL references unknown column %q on table %q", column, table),
			}
		}
	}

	return nil
}

var ctePattern = regexp.MustCompile(`(?i)\b(?:WITH|,)\s*([a-zA-Z_]\w*)\s*(?:\([^)]*\))?\s*AS\s*\(`)

func extractCTENames(sqlText string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, match := range ctePattern.FindAllStringSubmatch(sqlText, -1) {
		names[strings.ToLower(match[1])] = struct{}{}
	}
	return names
}

// bareTableName strips quoting and schema qualification from a captured
// table reference.
func bareTableName(ref string) string {
	ref = strings.Trim(ref, `"`)
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		ref = ref[idx+1:]
	}
	return strings.Trim(ref, `"`)
}
