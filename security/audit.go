// Package security implements the audit logging and token validation
// configuration surface: pluggable audit sinks, a six-block
// SecurityConfig with development/production presets, and an opt-in
// JWKS-backed signature verification layer that sits alongside (never
// replaces) the parse-only tenant extraction in package tenant.
package security

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the kinds of security-relevant occurrences the
// audit logger can record.
type EventType string

const (
	EventJwtValidationSuccess  EventType = "jwt_validation_success"
	EventJwtValidationFailure  EventType = "jwt_validation_failure"
	EventTokenRefresh          EventType = "token_refresh"
	EventAuthenticationFailure EventType = "authentication_failure"
	EventAuthorizationFailure  EventType = "authorization_failure"
	EventSuspiciousActivity    EventType = "suspicious_activity"
	EventConfigurationChange   EventType = "configuration_change"
	EventPermissionDenied      EventType = "permission_denied"
)

// Severity classifies an audit event's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Result is the outcome an audit event records, independent of its
// EventType — EventType is fixed per call site; Result and Severity
// vary with the outcome.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultBlocked Result = "blocked"
)

// Event is one audit record.
type Event struct {
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Subject   string         `json:"subject,omitempty"`
	SourceIP  string         `json:"source_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action"`
	Result    Result         `json:"result"`
	Details   map[string]any `json:"details,omitempty"`
	RiskScore *uint8         `json:"risk_score,omitempty"`
}

// AuditLogger is the sink-agnostic audit logging contract.
type AuditLogger interface {
	LogEvent(e Event) error
	LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error
	LogAuthentication(subject, sourceIP string, result Result) error
	LogAuthorization(subject, resource, action string, result Result) error
}

func newEvent() Event {
	return Event{EventID: uuid.NewString(), Timestamp: time.Now().UTC()}
}

func severityFor(result Result) Severity {
	switch result {
	case ResultSuccess:
		return SeverityInfo
	case ResultBlocked:
		return SeverityError
	default:
		return SeverityWarning
	}
}

func jwtValidationEvent(tokenID, subject string, result Result, details map[string]any) Event {
	e := newEvent()
	e.Action = "jwt_validation"
	e.Result = result
	e.Severity = severityFor(result)
	e.Details = details
	if subject != "" {
		e.Subject = subject
	}
	if tokenID != "" {
		e.Resource = "jwt_token:" + tokenID
	}
	if result == ResultSuccess {
		e.EventType = EventJwtValidationSuccess
	} else {
		e.EventType = EventJwtValidationFailure
	}
	return e
}

// authenticationEvent always stamps EventType = AuthenticationFailure
// regardless of result; outcomes are distinguished via Severity/Result,
// so consumers filter one event type per concern.
func authenticationEvent(subject, sourceIP string, result Result) Event {
	e := newEvent()
	e.EventType = EventAuthenticationFailure
	e.Action = "authentication"
	e.Result = result
	e.Severity = severityFor(result)
	e.Subject = subject
	e.SourceIP = sourceIP
	return e
}

// authorizationEvent always stamps EventType = AuthorizationFailure
// regardless of result, like authenticationEvent.
func authorizationEvent(subject, resource, action string, result Result) Event {
	e := newEvent()
	e.EventType = EventAuthorizationFailure
	e.Action = action
	e.Result = result
	e.Severity = severityFor(result)
	e.Subject = subject
	e.Resource = resource
	return e
}

// marshalEvent renders an Event as a JSON line for sinks that are
// line-oriented (file, NATS payload, Redis stream field value).
func marshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
