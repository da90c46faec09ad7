// Package audit logs security-relevant pipeline events in structured JSON
// for SIEM consumption.
package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes security events for filtering and alerting.
type EventType string

const (
	// EventInjectionAttempt is logged when libinjection flags a parameter value.
	EventInjectionAttempt EventType = "sql_injection_attempt"
	// EventSafetyViolation is logged when the safety gate rejects a statement.
	EventSafetyViolation EventType = "safety_violation"
)

// SecurityAuditor writes security events under a dedicated logger namespace
// so SIEM pipelines can filter on it.
type SecurityAuditor struct {
	logger *zap.Logger
}

func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a rejected parameter value. The value itself is
// not logged; the libinjection fingerprint is enough for pattern analysis.
func (a *SecurityAuditor) LogInjectionAttempt(userID string, connectionID uuid.UUID, param, fingerprint string) {
	a.logger.Warn("sql injection attempt blocked",
		zap.String("event_type", string(EventInjectionAttempt)),
		zap.Time("timestamp", time.Now().UTC()),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID.String()),
		zap.String("param", param),
		zap.String("fingerprint", fingerprint),
		zap.String("severity", "critical"),
	)
}

// LogSafetyViolation records a statement rejected by the read-only or
// single-statement gate.
func (a *SecurityAuditor) LogSafetyViolation(userID string, connectionID uuid.UUID, reason, sqlText string) {
	a.logger.Warn("statement rejected by safety gate",
		zap.String("event_type", string(EventSafetyViolation)),
		zap.Time("timestamp", time.Now().UTC()),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID.String()),
		zap.String("reason", reason),
		zap.Int("sql_len", len(sqlText)),
		zap.String("severity", "warning"),
	)
}
