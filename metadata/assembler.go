package metadata

import (
	"time"

	"github.com/qollective/qollective-go/envelope"
)

// DefaultPropagatedExtensions names the Extensions sections that
// PreserveForResponse copies onto the response Meta by default.
// tenant_extraction is propagated because downstream handlers and audit
// consumers commonly need to see which source resolved the tenant on a
// response, not just a request.
var DefaultPropagatedExtensions = []string{"tenant_extraction"}

// PreserveForResponse is the pure function implementing the response
// metadata-preservation rule: request_id, tenant, on_behalf_of, tracing
// identifiers, and the configured propagated extension sections survive
// onto the response; timestamp is reset to now; security credentials are
// dropped. req may be nil, producing a fresh Meta with only a new
// timestamp and request id.
func PreserveForResponse(req *envelope.Meta) envelope.Meta {
	return PreserveForResponseWithExtensions(req, DefaultPropagatedExtensions)
}

// PreserveForResponseWithExtensions is PreserveForResponse with an explicit
// list of extension section names to carry forward.
func PreserveForResponseWithExtensions(req *envelope.Meta, propagate []string) envelope.Meta {
	resp := envelope.Meta{Timestamp: time.Now().UTC()}

	if req == nil {
		resp.RequestID = newResponseRequestID()
		return resp
	}

	resp.RequestID = req.RequestID
	resp.Tenant = req.Tenant
	resp.OnBehalfOf = req.OnBehalfOf

	if req.Tracing != nil {
		tracing := *req.Tracing
		resp.Tracing = &tracing
	}

	if len(propagate) > 0 && req.Extensions != nil {
		for _, name := range propagate {
			if v, ok := req.Extensions[name]; ok {
				resp.SetExtension(name, v)
			}
		}
	}

	// Security credentials never echo back onto a response.
	resp.Security = nil

	return resp
}

// WithDuration sets the response Meta's Duration field, in milliseconds,
// given a start time captured at request ingress.
func WithDuration(m envelope.Meta, start time.Time) envelope.Meta {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	m.Duration = envelope.DurationField(elapsed)
	return m
}

func newResponseRequestID() string {
	// A response built with no originating request still needs an
	// identifiable request id; New applies the same construction default.
	e := envelope.New(envelope.Meta{}, struct{}{})
	return e.Meta.RequestID
}
