// Package audit logs security-relevant events in a structured form that a
// SIEM can filter on the "security_audit" logger name.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/logging"
	"github.com/chatq-inc/chatq-engine/pkg/middleware"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection flags a caller-supplied value.
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventUnsafeStatement is logged when model-generated SQL is not a single read-only statement.
	EventUnsafeStatement SecurityEventType = "unsafe_statement_rejected"
	// EventQueryExecution is logged for every executed statement.
	EventQueryExecution SecurityEventType = "query_execution"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is the JSON document attached to every audit log line.
type SecurityEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Tenant    string            `json:"tenant"`
	AuthCode  string            `json:"auth_code,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// InjectionDetails describes a rejected caller-supplied value.
type InjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"`
}

// StatementDetails describes a generated statement.
type StatementDetails struct {
	Table    string `json:"table,omitempty"`
	SQL      string `json:"sql"`
	Reason   string `json:"reason,omitempty"`
	RowCount int    `json:"row_count,omitempty"`
}

// SecurityAuditor logs security events. A nil *SecurityAuditor discards
// everything, so callers need not check.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates an auditor under the "security_audit" logger name.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// LogInjectionAttempt records a caller value that libinjection flagged.
// Logged at ERROR with critical severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, tenant string, profile *models.AccessProfile, details InjectionDetails) {
	if a == nil {
		return
	}
	details.Value = logging.TruncateString(details.Value, logging.MaxQuestionLogLength)
	event := a.event(ctx, EventInjectionAttempt, SeverityCritical, tenant, profile, details)
	a.logger.Error("SQL injection attempt detected",
		append(a.fields(event),
			zap.String("field", details.Field),
			zap.String("fingerprint", details.Fingerprint))...)
}

// LogUnsafeStatement records generated SQL that failed read-only validation.
func (a *SecurityAuditor) LogUnsafeStatement(ctx context.Context, tenant string, profile *models.AccessProfile, details StatementDetails) {
	if a == nil {
		return
	}
	details.SQL = logging.SanitizeQuery(details.SQL)
	event := a.event(ctx, EventUnsafeStatement, SeverityWarning, tenant, profile, details)
	a.logger.Warn("Generated statement rejected",
		append(a.fields(event), zap.String("reason", details.Reason))...)
}

// LogQueryExecution records an executed statement for the audit trail.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, tenant string, profile *models.AccessProfile, details StatementDetails) {
	if a == nil {
		return
	}
	details.SQL = logging.SanitizeQuery(details.SQL)
	event := a.event(ctx, EventQueryExecution, SeverityInfo, tenant, profile, details)
	a.logger.Info("Query executed",
		append(a.fields(event),
			zap.String("table", details.Table),
			zap.Int("row_count", details.RowCount))...)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, severity, tenant string, profile *models.AccessProfile, details any) SecurityEvent {
	event := SecurityEvent{
		EventID:   uuid.New(),
		Timestamp: a.now().UTC(),
		EventType: eventType,
		Tenant:    tenant,
		RequestID: middleware.RequestIDFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
	if profile != nil {
		event.AuthCode = profile.AuthCode
		event.UserID = profile.UserID
	}
	return event
}

func (a *SecurityAuditor) fields(event SecurityEvent) []zap.Field {
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("tenant", event.Tenant),
		zap.String("user_id", event.UserID),
		zap.String("request_id", event.RequestID),
		zap.String("severity", event.Severity),
	}
}
