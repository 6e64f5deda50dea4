// Package audit provides security audit logging for SIEM consumption.
// It logs abuse-control events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSignatureRejected is logged when a webhook delivery fails HMAC
	// verification.
	EventSignatureRejected SecurityEventType = "webhook_signature_rejected"
	// EventRateLimitExceeded is logged when an author goes over the daily
	// mention limit.
	EventRateLimitExceeded SecurityEventType = "rate_limit_exceeded"
	// EventLowTrustAuthor is logged when a mention is dropped because the
	// author's reputation score is below the processing cutoff.
	EventLowTrustAuthor SecurityEventType = "low_trust_author"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	CastID    string            `json:"cast_id,omitempty"`
	AuthorFID int64             `json:"author_fid,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity
// levels. All log methods are safe on a nil receiver, so the auditor stays
// optional everywhere it is injected.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	// Create a child logger with security-specific namespace for SIEM parsing
	securityLogger := logger.Named("security_audit")
	return &SecurityAuditor{logger: securityLogger}
}

// LogSignatureRejected records a webhook delivery that failed HMAC
// verification. This is logged at ERROR level with "critical" severity:
// a burst of these means somebody is probing the endpoint.
//
// Client IP should be extracted from the HTTP request (typically r.RemoteAddr).
func (a *SecurityAuditor) LogSignatureRejected(clientIP string, bodySize int) {
	if a == nil {
		return
	}

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSignatureRejected,
		ClientIP:  clientIP,
		Details: map[string]int{
			"body_size": bodySize,
		},
		Severity: "critical",
	}

	// Serialize event to JSON for SIEM ingestion
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Webhook signature rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("client_ip", clientIP),
		zap.Int("body_size", bodySize),
		zap.String("severity", "critical"),
	)
}

// LogRateLimitExceeded records an author hitting the daily mention limit.
// This is logged at WARN level as ordinary users hit the limit occasionally
// while abusers hit it constantly.
func (a *SecurityAuditor) LogRateLimitExceeded(castID string, authorFID int64, count int) {
	if a == nil {
		return
	}

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventRateLimitExceeded,
		CastID:    castID,
		AuthorFID: authorFID,
		Details: map[string]int{
			"mentions_in_window": count,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Author over daily mention limit",
		zap.String("event_json", string(eventJSON)),
		zap.String("cast_id", castID),
		zap.Int64("author_fid", authorFID),
		zap.Int("mentions_in_window", count),
		zap.String("severity", "warning"),
	)
}

// LogLowTrustAuthor records a mention dropped because the author's reputation
// score is below the spam cutoff.
func (a *SecurityAuditor) LogLowTrustAuthor(castID string, authorFID int64, score float64) {
	if a == nil {
		return
	}

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventLowTrustAuthor,
		CastID:    castID,
		AuthorFID: authorFID,
		Details: map[string]float64{
			"user_score": score,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Mention dropped for low user score",
		zap.String("event_json", string(eventJSON)),
		zap.String("cast_id", castID),
		zap.Int64("author_fid", authorFID),
		zap.Float64("user_score", score),
		zap.String("severity", "warning"),
	)
}
