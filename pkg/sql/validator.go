// Package sql gates candidate statements before they reach a target
// database: single-statement enforcement, read-only classification, and
// identifier verification against the schema snapshot.
package sql

import (
	"strings"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
)

// Validate runs the safety gate over a candidate statement:
// parse (comment strip + normalize) -> classify -> allow/reject.
//
// Multi-statement input is rejected regardless of policy; under a read-only
// policy only SELECT/WITH/EXPLAIN survive classification. On success the
// returned statement is the normalized single statement to execute.
func Validate(sqlText string, readOnly bool) (string, error) {
	stripped := StripComments(sqlText)
	normalized, err := ensureSingleStatement(stripped)
	if err != nil {
		return "", err
	}
	if normalized == "" {
		return "", apperrors.Validationf("empty SQL statement")
	}

	if readOnly {
		if err := checkReadOnly(normalized); err != nil {
			return "", err
		}
	}

	return normalized, nil
}

// ensureSingleStatement strips a trailing terminator and rejects any
// remaining semicolon outside string literals. Because comments were already
// removed, a terminator smuggled inside -- or /* */ cannot hide a second
// statement.
func ensureSingleStatement(sqlText string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlText))
	if hasSemicolonOutsideStrings(normalized) {
		return "", &apperrors.SafetyViolation{
			Reason:  apperrors.ReasonMultiStatementRejected,
			Message: "multiple SQL statements are not allowed",
		}
	}
	return normalized, nil
}

func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")
	if strings.HasSuffix(sqlText, ";") {
		sqlText = strings.TrimRight(strings.TrimSuffix(sqlText, ";"), " \t\n\r")
	}
	return sqlText
}

// hasSemicolonOutsideStrings scans for a statement terminator outside of
// single- or double-quoted literals. Both backslash escapes and SQL standard
// doubled quotes are tolerated.
func hasSemicolonOutsideStrings(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prev := rune(0)

	for _, ch := range sqlText {
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters, which
			// keeps the scan inside the literal.
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		prev = ch
	}

	return false
}

// StripComments removes -- line comments and /* */ block comments while
// preserving string literals. Block comments do not nest.
func StripComments(sqlText string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	var b strings.Builder
	b.Grow(len(sqlText))

	state := stateNormal
	runes := []rune(sqlText)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case ch == '-' && next == '-':
				state = stateLineComment
				i++ // skip second dash
			case ch == '/' && next == '*':
				state = stateBlockComment
				i++
				b.WriteRune(' ')
			case ch == '\'':
				state = stateSingleQuote
				b.WriteRune(ch)
			case ch == '"':
				state = stateDoubleQuote
				b.WriteRune(ch)
			default:
				b.WriteRune(ch)
			}
		case stateSingleQuote:
			b.WriteRune(ch)
			if ch == '\'' && (i == 0 || runes[i-1] != '\\') {
				state = stateNormal
			}
		case stateDoubleQuote:
			b.WriteRune(ch)
			if ch == '"' && (i == 0 || runes[i-1] != '\\') {
				state = stateNormal
			}
		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
				b.WriteRune('\n')
			}
		case stateBlockComment:
			if ch == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return b.String()
}
