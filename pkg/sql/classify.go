package sql

import (
	"regexp"
	"strings"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
)

// StatementClass is the leading operation of a SQL statement.
type StatementClass string

const (
	ClassSelect  StatementClass = "SELECT"
	ClassWith    StatementClass = "WITH"
	ClassExplain StatementClass = "EXPLAIN"
	ClassInsert  StatementClass = "INSERT"
	ClassUpdate  StatementClass = "UPDATE"
	ClassDelete  StatementClass = "DELETE"
	ClassDDL     StatementClass = "DDL" // CREATE, ALTER, DROP, TRUNCATE
	ClassGrant   StatementClass = "GRANT"
	ClassUnknown StatementClass = "UNKNOWN"
)

// modifyingCTEPattern matches CTE bodies that modify data, e.g.
// WITH deleted AS (DELETE FROM orders ...) SELECT * FROM deleted.
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// Classify determines the statement class from the leading keyword,
// case-insensitively. Callers should strip comments first.
func Classify(sqlText string) StatementClass {
	normalized := strings.ToUpper(strings.TrimSpace(sqlText))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return ClassSelect
	case strings.HasPrefix(normalized, "WITH"):
		return ClassWith
	case strings.HasPrefix(normalized, "EXPLAIN"):
		return ClassExplain
	case strings.HasPrefix(normalized, "INSERT"):
		return ClassInsert
	case strings.HasPrefix(normalized, "UPDATE"):
		return ClassUpdate
	case strings.HasPrefix(normalized, "DELETE"):
		return ClassDelete
	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return ClassDDL
	case strings.HasPrefix(normalized, "GRANT"),
		strings.HasPrefix(normalized, "REVOKE"):
		return ClassGrant
	default:
		return ClassUnknown
	}
}

// checkReadOnly rejects anything that is not a pure read. WITH statements
// are additionally rejected when a CTE body modifies data.
func checkReadOnly(sqlText string) error {
	class := Classify(sqlText)

	switch class {
	case ClassSelect, ClassExplain:
		return nil
	case ClassWith:
		if modifyingCTEPattern.MatchString(sqlText) {
			return &apperrors.SafetyViolation{
				Reason:  apperrors.ReasonReadOnlyViolation,
				Message: "data-modifying CTE is not allowed on a read-only connection",
			}
		}
		return nil
	default:
		return &apperrors.SafetyViolation{
			Reason:  apperrors.ReasonReadOnlyViolation,
			Message: "connection is read-only; only SELECT, WITH and EXPLAIN statements are allowed",
		}
	}
}
