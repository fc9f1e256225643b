package envelope

import (
	"strings"
	"time"
)

// SecurityMeta carries identity and credential context. Token material
// (bearer tokens, refresh tokens) is deliberately absent — only derived
// identity fields travel in Meta.
type SecurityMeta struct {
	UserID      string     `json:"userId,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	AuthMethod  string     `json:"authMethod,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	IPAddress   string     `json:"ipAddress,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`
}

// TracingMeta mirrors the fields of an OpenTelemetry span context, flattened
// for wire transport.
type TracingMeta struct {
	TraceID       string            `json:"traceId,omitempty"`
	SpanID        string            `json:"spanId,omitempty"`
	ParentSpanID  string            `json:"parentSpanId,omitempty"`
	Baggage       map[string]string `json:"baggage,omitempty"`
	OperationName string            `json:"operationName,omitempty"`
	SamplingRate  float64           `json:"samplingRate,omitempty"`
	Sampled       bool              `json:"sampled,omitempty"`
	TraceState    string            `json:"traceState,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Status        string            `json:"status,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Meta is the metadata bundle carried by every envelope. Scalar fields
// that are optional but invalid when explicitly blank (Version, Tenant,
// OnBehalfOf, Duration) are pointers so that "absent" and "explicitly
// empty" are distinguishable during validation.
type Meta struct {
	Timestamp   time.Time      `json:"timestamp"`
	RequestID   string         `json:"requestId"`
	Version     *string        `json:"version,omitempty"`
	Duration    *float64       `json:"duration,omitempty"`
	Tenant      *string        `json:"tenant,omitempty"`
	OnBehalfOf  *string        `json:"onBehalfOf,omitempty"`
	Security    *SecurityMeta  `json:"security,omitempty"`
	Tracing     *TracingMeta   `json:"tracing,omitempty"`
	Performance map[string]any `json:"performance,omitempty"`
	Monitoring  map[string]any `json:"monitoring,omitempty"`
	Debug       map[string]any `json:"debug,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty"`
}

// StringField constructs a *string for Meta's pointer-optional fields.
func StringField(v string) *string { return &v }

// DurationField constructs a *float64 for Meta.Duration.
func DurationField(ms float64) *float64 { return &ms }

// TenantOrEmpty returns the tenant string, or "" if unset.
func (m *Meta) TenantOrEmpty() string {
	if m == nil || m.Tenant == nil {
		return ""
	}
	return *m.Tenant
}

// OnBehalfOfOrEmpty returns the on-behalf-of subject, or "" if unset.
func (m *Meta) OnBehalfOfOrEmpty() string {
	if m == nil || m.OnBehalfOf == nil {
		return ""
	}
	return *m.OnBehalfOf
}

// SetExtension stores a named section under Extensions, initializing the map
// if needed.
func (m *Meta) SetExtension(name string, value any) {
	if m.Extensions == nil {
		m.Extensions = make(map[string]any)
	}
	m.Extensions[name] = value
}

// GetExtension reads a named section from Extensions.
func (m *Meta) GetExtension(name string) (any, bool) {
	if m == nil || m.Extensions == nil {
		return nil, false
	}
	v, ok := m.Extensions[name]
	return v, ok
}

func isWhitespaceOnly(s string) bool {
	return strings.TrimSpace(s) == ""
}
