package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		readOnly   bool
		want       string
		wantReason string
	}{
		{
			name:     "plain select",
			sql:      "SELECT id, name FROM users",
			readOnly: true,
			want:     "SELECT id, name FROM users",
		},
		{
			name:     "trailing semicolon stripped",
			sql:      "SELECT 1;",
			readOnly: true,
			want:     "SELECT 1",
		},
		{
			name:     "trailing semicolon with whitespace",
			sql:      "SELECT 1 ; \n",
			readOnly: true,
			want:     "SELECT 1",
		},
		{
			name:       "two statements rejected",
			sql:        "SELECT 1; DROP TABLE users",
			readOnly:   true,
			wantReason: apperrors.ReasonMultiStatementRejected,
		},
		{
			name:       "multi statement rejected even when writable",
			sql:        "SELECT 1; SELECT 2",
			readOnly:   false,
			wantReason: apperrors.ReasonMultiStatementRejected,
		},
		{
			name:     "semicolon inside string literal allowed",
			sql:      "SELECT * FROM logs WHERE msg = 'a;b'",
			readOnly: true,
			want:     "SELECT * FROM logs WHERE msg = 'a;b'",
		},
		{
			name:     "semicolon inside quoted identifier allowed",
			sql:      `SELECT "weird;col" FROM t`,
			readOnly: true,
			want:     `SELECT "weird;col" FROM t`,
		},
		{
			name:       "semicolon hidden in line comment still detected",
			sql:        "SELECT 1 -- comment;\n; DELETE FROM users",
			readOnly:   true,
			wantReason: apperrors.ReasonMultiStatementRejected,
		},
		{
			name:     "leading comment before select",
			sql:      "-- fetch everything\nSELECT * FROM users",
			readOnly: true,
			want:     "SELECT * FROM users",
		},
		{
			name:       "update rejected on read-only",
			sql:        "UPDATE users SET name = 'x'",
			readOnly:   true,
			wantReason: apperrors.ReasonReadOnlyViolation,
		},
		{
			name:       "delete rejected on read-only",
			sql:        "DELETE FROM users WHERE id = 1",
			readOnly:   true,
			wantReason: apperrors.ReasonReadOnlyViolation,
		},
		{
			name:       "ddl rejected on read-only",
			sql:        "DROP TABLE users",
			readOnly:   true,
			wantReason: apperrors.ReasonReadOnlyViolation,
		},
		{
			name:     "update allowed when writable",
			sql:      "UPDATE users SET name = 'x'",
			readOnly: false,
			want:     "UPDATE users SET name = 'x'",
		},
		{
			name:     "plain with allowed",
			sql:      "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
			readOnly: true,
			want:     "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		},
		{
			name:       "modifying cte rejected on read-only",
			sql:        "WITH gone AS (DELETE FROM orders RETURNING *) SELECT * FROM gone",
			readOnly:   true,
			wantReason: apperrors.ReasonReadOnlyViolation,
		},
		{
			name:     "explain allowed",
			sql:      "EXPLAIN SELECT * FROM users",
			readOnly: true,
			want:     "EXPLAIN SELECT * FROM users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.sql, tt.readOnly)

			if tt.wantReason != "" {
				require.Error(t, err)
				var violation *apperrors.SafetyViolation
				require.True(t, errors.As(err, &violation), "expected SafetyViolation, got %T", err)
				assert.Equal(t, tt.wantReason, violation.Reason)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateEmptyStatement(t *testing.T) {
	for _, sql := range []string{"", "   ", ";", "-- only a comment"} {
		_, err := Validate(sql, true)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "input %q", sql)
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "line comment removed",
			sql:  "SELECT 1 -- trailing note",
			want: "SELECT 1 ",
		},
		{
			name: "block comment replaced with space",
			sql:  "SELECT /* hint */ 1",
			want: "SELECT   1",
		},
		{
			name: "comment markers inside string preserved",
			sql:  "SELECT '--not a comment' AS v",
			want: "SELECT '--not a comment' AS v",
		},
		{
			name: "block markers inside string preserved",
			sql:  "SELECT '/* keep */'",
			want: "SELECT '/* keep */'",
		},
		{
			name: "newline after line comment kept",
			sql:  "SELECT 1 -- note\nFROM t",
			want: "SELECT 1 \nFROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripComments(tt.sql))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want StatementClass
	}{
		{"SELECT 1", ClassSelect},
		{"  select * from t", ClassSelect},
		{"WITH x AS (SELECT 1) SELECT * FROM x", ClassWith},
		{"EXPLAIN ANALYZE SELECT 1", ClassExplain},
		{"INSERT INTO t VALUES (1)", ClassInsert},
		{"UPDATE t SET a = 1", ClassUpdate},
		{"DELETE FROM t", ClassDelete},
		{"CREATE TABLE t (id int)", ClassDDL},
		{"ALTER TABLE t ADD c int", ClassDDL},
		{"DROP TABLE t", ClassDDL},
		{"TRUNCATE t", ClassDDL},
		{"GRANT SELECT ON t TO alice", ClassGrant},
		{"VACUUM", ClassUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.sql), "sql %q", tt.sql)
	}
}
