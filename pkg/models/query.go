package models

import (
	"time"

	"github.com/google/uuid"
)

// ParameterKind is the value kind a detected parameter accepts.
type ParameterKind string

const (
	ParameterText   ParameterKind = "text"
	ParameterNumber ParameterKind = "number"
	ParameterDate   ParameterKind = "date"
)

// NormalizeParameterKind coerces unknown kinds to text.
func NormalizeParameterKind(k string) ParameterKind {
	switch ParameterKind(k) {
	case ParameterNumber:
		return ParameterNumber
	case ParameterDate:
		return ParameterDate
	default:
		return ParameterText
	}
}

// ParameterSpec describes one unbound value a question requires before SQL
// can be generated deterministically. Transient, never persisted.
type ParameterSpec struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Kind        ParameterKind `json:"type"`
	Description string        `json:"description,omitempty"`
	Default     *string       `json:"default,omitempty"`
	Required    bool          `json:"required"`
}

// DetectionResult is the parameter detector's verdict for one question.
type DetectionResult struct {
	NeedsParameters bool            `json:"needs_parameters"`
	Parameters      []ParameterSpec `json:"parameters"`
	Clarification   string          `json:"clarification,omitempty"`
}

// GeneratedQuery is the transient result of SQL generation.
type GeneratedQuery struct {
	SQL         string            `json:"sql"`
	Explanation string            `json:"explanation"`
	// Bindings records the parameter values substituted into the statement.
	Bindings map[string]string `json:"bindings,omitempty"`
}

// ExecutionResult holds normalized results of one statement execution.
// Rows are positionally aligned with Columns; cell values are restricted to
// the portable set (string, int64, float64, bool, nil).
type ExecutionResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
	ElapsedMs int64    `json:"execution_time_ms"`
}

// HistoryStatus is the terminal state of one pipeline attempt.
type HistoryStatus string

const (
	StatusSuccess HistoryStatus = "success"
	StatusError   HistoryStatus = "error"
	StatusTimeout HistoryStatus = "timeout"
)

// HistoryEntry is the immutable audit record of one question->execution
// attempt. Only IsFavorite may change after the fact.
type HistoryEntry struct {
	ID              uuid.UUID     `json:"id"`
	UserID          string        `json:"-"`
	ConnectionID    uuid.UUID     `json:"connection_id"`
	NaturalLanguage *string       `json:"natural_language_query,omitempty"`
	GeneratedSQL    *string       `json:"generated_sql,omitempty"`
	ExecutedAt      time.Time     `json:"executed_at"`
	ExecutionTimeMs *int64        `json:"execution_time_ms,omitempty"`
	RowCount        *int          `json:"row_count,omitempty"`
	Status          HistoryStatus `json:"status"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	IsFavorite      bool          `json:"is_favorite"`
}

// FeedbackRecord is an append-only (original, corrected) SQL pair used as a
// few-shot corrective example for future generation.
type FeedbackRecord struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"-"`
	ConnectionID    uuid.UUID `json:"connection_id"`
	NaturalLanguage string    `json:"natural_language"`
	OriginalSQL     string    `json:"original_sql"`
	CorrectedSQL    string    `json:"corrected_sql"`
	CreatedAt       time.Time `json:"created_at"`
}
