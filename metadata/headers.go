package metadata

import "github.com/qollective/qollective-go/envelope"

// Header names for the text-protocol metadata marshalling contract.
const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderSpanID    = "X-Span-Id"
	HeaderTenantID  = "X-Tenant-Id"
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
)

// ToHeaders marshals the subset of Meta carried over text-protocol headers.
// Only populated fields produce a header; absent fields are simply omitted.
func ToHeaders(m envelope.Meta) map[string]string {
	headers := make(map[string]string)

	if m.Tracing != nil {
		if m.Tracing.TraceID != "" {
			headers[HeaderTraceID] = m.Tracing.TraceID
		}
		if m.Tracing.SpanID != "" {
			headers[HeaderSpanID] = m.Tracing.SpanID
		}
	}
	if tenant := m.TenantOrEmpty(); tenant != "" {
		headers[HeaderTenantID] = tenant
	}
	if m.Security != nil {
		if m.Security.UserID != "" {
			headers[HeaderUserID] = m.Security.UserID
		}
		if m.Security.SessionID != "" {
			headers[HeaderSessionID] = m.Security.SessionID
		}
	}
	return headers
}

// HeaderGetter abstracts over the concrete transport's header type
// (http.Header, nats.Header, a plain map, ...). Missing headers leave
// fields absent; malformed headers are ignored, never rejected.
type HeaderGetter interface {
	Get(name string) string
}

// MapHeaders adapts a plain map[string]string to HeaderGetter.
type MapHeaders map[string]string

func (m MapHeaders) Get(name string) string { return m[name] }

// FromHeaders returns a Meta with the header-carried fields applied on top
// of base. Blank header values are treated as absent, not as an explicit
// empty override.
func FromHeaders(base envelope.Meta, headers HeaderGetter) envelope.Meta {
	if headers == nil {
		return base
	}

	// Copy-on-write: never mutate the caller's Tracing/Security structs.
	if base.Tracing != nil {
		tracing := *base.Tracing
		base.Tracing = &tracing
	}
	if base.Security != nil {
		sec := *base.Security
		base.Security = &sec
	}

	if traceID := headers.Get(HeaderTraceID); traceID != "" {
		if base.Tracing == nil {
			base.Tracing = &envelope.TracingMeta{}
		}
		base.Tracing.TraceID = traceID
	}
	if spanID := headers.Get(HeaderSpanID); spanID != "" {
		if base.Tracing == nil {
			base.Tracing = &envelope.TracingMeta{}
		}
		base.Tracing.SpanID = spanID
	}
	if tenant := headers.Get(HeaderTenantID); tenant != "" {
		base.Tenant = envelope.StringField(tenant)
	}
	if userID := headers.Get(HeaderUserID); userID != "" {
		if base.Security == nil {
			base.Security = &envelope.SecurityMeta{}
		}
		base.Security.UserID = userID
	}
	if sessionID := headers.Get(HeaderSessionID); sessionID != "" {
		if base.Security == nil {
			base.Security = &envelope.SecurityMeta{}
		}
		base.Security.SessionID = sessionID
	}

	return base
}
