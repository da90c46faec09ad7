// Package apperrors defines the error taxonomy shared across the pipeline.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates an unknown connection or history id.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates bad input shape, rejected before any external call.
	ErrValidation = errors.New("validation error")
	// ErrNotIntrospected indicates a schema lookup against a connection whose
	// schema was never introspected. Callers must not treat this as an empty schema.
	ErrNotIntrospected = errors.New("schema not yet introspected")
	// ErrPoolExhausted indicates pool acquisition timed out under load.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)

// ConnectivityError wraps a driver failure to reach a target database.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach target database: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// PartialSchemaError is returned when introspection read some tables but
// failed on others. The successfully read portion is still usable.
type PartialSchemaError struct {
	FailedTables []string
	Err          error
}

func (e *PartialSchemaError) Error() string {
	return fmt.Sprintf("schema introspection partially failed (tables: %s): %v",
		strings.Join(e.FailedTables, ", "), e.Err)
}

func (e *PartialSchemaError) Unwrap() error { return e.Err }

// GenerationError is returned when the generation model produced nothing
// usable. Partial SQL and explanation are carried so the caller can display
// them alongside the error.
type GenerationError struct {
	Message     string
	SQL         string
	Explanation string
	Err         error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Safety rejection reasons.
const (
	ReasonReadOnlyViolation      = "read_only_violation"
	ReasonMultiStatementRejected = "multi_statement_rejected"
)

// SafetyViolation is a terminal rejection from the safety validator.
type SafetyViolation struct {
	Reason  string
	Message string
}

func (e *SafetyViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ExecutionError carries the target database's own error message verbatim
// for user diagnosis.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// Timeout origins.
const (
	TimeoutOriginGeneration = "generation"
	TimeoutOriginExecution  = "execution"
)

// TimeoutError indicates a generation-call or execution-statement timeout,
// tagged by origin.
type TimeoutError struct {
	Origin string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout", e.Origin)
}

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
