// Package rest implements the REST and WebSocket surface bindings:
// envelope<->HTTP request/response mapping with an `extensions["protocol"]`
// section, and envelope-per-message WebSocket framing, both layered on
// labstack/echo/v4.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/tenant"
)

// payloadToMap re-encodes a typed payload to a generic map so the tenant
// extractor's payload-pointer walk (which operates on decoded JSON
// objects) can consult it regardless of T's concrete Go type.
func payloadToMap(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil
	}
	return m, nil
}

// MaxURIPathLength bounds the protocol extension's recorded uri_path.
const MaxURIPathLength = 2048

// ProtocolSection is recorded under Meta.Extensions["protocol"] for every
// request that entered through this binding.
type ProtocolSection struct {
	Type        string            `json:"type"`
	Method      string            `json:"method"`
	URIPath     string            `json:"uri_path"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

const ProtocolExtensionName = "protocol"

// Binding wires a ContextDataHandler into an Echo route, reconstructing
// an inbound envelope from the HTTP request, running tenant extraction,
// dispatching through the handler pipeline, and emitting the response
// envelope (or a transport-native error) back over the wire.
type Binding[T, R any] struct {
	Handler   handler.ContextDataHandler[T, R]
	Extractor *tenant.Extractor
	Log       *zap.Logger
}

// NewBinding builds a REST binding around a user handler.
func NewBinding[T, R any](h handler.ContextDataHandler[T, R], extractor *tenant.Extractor, log *zap.Logger) *Binding[T, R] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binding[T, R]{Handler: h, Extractor: extractor, Log: log}
}

func queryMap(c echo.Context) map[string]string {
	out := make(map[string]string)
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// EchoHandler returns an echo.HandlerFunc suitable for e.GET/e.POST/etc.
func (b *Binding[T, R]) EchoHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		uriPath := req.URL.Path
		if len(uriPath) > MaxURIPathLength {
			return echo.NewHTTPError(http.StatusRequestURITooLong, "uri_path exceeds maximum length")
		}

		var payload T
		if req.ContentLength != 0 {
			if err := c.Bind(&payload); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "failed to decode request body")
			}
		}

		meta := envelope.Meta{}
		meta = metadata.FromHeaders(meta, metadata.MapHeaders(flattenHeader(req.Header)))
		meta.SetExtension(ProtocolExtensionName, ProtocolSection{
			Type:        "rest",
			Method:      req.Method,
			URIPath:     uriPath,
			QueryParams: queryMap(c),
			Headers:     flattenHeader(req.Header),
		})

		env := envelope.New(meta, payload)

		if b.Extractor != nil {
			payloadMap, _ := payloadToMap(payload)
			info, extractErr := b.Extractor.Extract(echoHeaderGetter{req.Header}, payloadMap, queryMap(c))
			if extractErr != nil {
				b.Log.Warn("tenant extraction failed", zap.Error(extractErr))
			} else if info != nil {
				tenant.Apply(info, &env.Meta)
				if info.Source == tenant.SourceJWT {
					setAuthMethod(&env.Meta, AuthMethodJwtUnverified, "")
				}
			}
		}

		// A JwtGate earlier in the chain overrides the unverified marker.
		if method, ok := c.Get(AuthMethodContextKey).(string); ok && method != "" {
			subject, _ := c.Get(AuthSubjectContextKey).(string)
			setAuthMethod(&env.Meta, method, subject)
		}

		ctxData := metadata.FromMeta(env.Meta)
		result, err := b.Handler.Handle(ctx, ctxData, env.Payload)
		if err != nil {
			return mapErrorToHTTP(err)
		}

		respMeta := ctxData.ToResponseMeta()
		for name, value := range metadata.ToHeaders(respMeta) {
			c.Response().Header().Set(name, value)
		}
		resp := envelope.Envelope[R]{Meta: respMeta, Payload: result}
		return c.JSON(http.StatusOK, resp)
	}
}

func setAuthMethod(m *envelope.Meta, method, subject string) {
	if m.Security == nil {
		m.Security = &envelope.SecurityMeta{}
	}
	m.Security.AuthMethod = method
	if subject != "" {
		m.Security.UserID = subject
	}
}

type echoHeaderGetter struct{ h http.Header }

func (e echoHeaderGetter) Get(name string) string { return e.h.Get(name) }

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func mapErrorToHTTP(err error) error {
	kind, ok := qerrors.KindOf(err)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch kind {
	case qerrors.KindValidation, qerrors.KindEnvelope, qerrors.KindParse:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case qerrors.KindSecurity, qerrors.KindNatsAuth:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case qerrors.KindMethodNotFound, qerrors.KindMcpServerNotFound, qerrors.KindAgentNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case qerrors.KindFeatureNotEnabled:
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
