package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	qerrors "github.com/qollective/qollective-go/errors"
)

// Source names a tenant-extraction origin. Priority is highest-first:
// JWT > Headers > Payload > Query > Explicit.
type Source string

const (
	SourceJWT      Source = "jwt"
	SourceHeaders  Source = "headers"
	SourcePayload  Source = "payload"
	SourceQuery    Source = "query"
	SourceExplicit Source = "explicit"
)

// Priority returns the source's numeric priority; higher wins.
func (s Source) Priority() int {
	switch s {
	case SourceJWT:
		return 40
	case SourceHeaders:
		return 30
	case SourcePayload:
		return 20
	case SourceQuery:
		return 10
	default:
		return 0
	}
}

// TenantInfo is the result of a successful extraction from one source.
type TenantInfo struct {
	TenantID   string
	OnBehalfOf string
	Source     Source
	Context    map[string]any
}

// ErrorPolicy governs what happens when an extraction source raises an
// error (e.g. a malformed JWT).
type ErrorPolicy string

const (
	// PolicyFailFast propagates the first source error immediately.
	PolicyFailFast ErrorPolicy = "fail_fast"
	// PolicyWarnContinue logs the error and tries the next source.
	PolicyWarnContinue ErrorPolicy = "warn_continue"
	// PolicySilent skips the erroring source without logging.
	PolicySilent ErrorPolicy = "silent"
)

// ExtractionConfig configures an Extractor.
type ExtractionConfig struct {
	// Enabled is the global toggle; false short-circuits extraction
	// entirely regardless of OnErrorPolicy.
	Enabled bool
	OnErrorPolicy ErrorPolicy
	// HeaderNames lists the header keys (case-insensitive match expected
	// from the caller) consulted for tenant extraction, in priority order.
	HeaderNames []string
	// PayloadPointers lists JSON-pointer-like dotted paths walked against
	// the inbound payload, in priority order (e.g. "tenant", "org.id").
	PayloadPointers []string
	// QueryParamNames lists query parameter names consulted, in priority order.
	QueryParamNames []string
}

// DefaultExtractionConfig returns the standard defaults.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		Enabled:         true,
		OnErrorPolicy:   PolicyWarnContinue,
		HeaderNames:     []string{"X-Tenant-Id", "X-Tenant", "Tenant-Id"},
		PayloadPointers: []string{"tenant", "tenant_id", "tenantId"},
		QueryParamNames: []string{"tenant", "tenant_id"},
	}
}

// Logger is the minimal logging surface the extractor needs for
// warn-continue reporting, satisfied by *zap.SugaredLogger.
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Warnw(string, ...any) {}

// Extractor resolves TenantInfo from a single source at a time; the
// priority walk across sources lives in Extract.
type Extractor struct {
	cfg    ExtractionConfig
	logger Logger
	cache  *RedisCache
}

// New builds an Extractor with the given configuration.
func New(cfg ExtractionConfig) *Extractor {
	return &Extractor{cfg: cfg, logger: noopLogger{}}
}

// WithLogger attaches a logger for warn-continue reporting.
func (e *Extractor) WithLogger(l Logger) *Extractor {
	if l != nil {
		e.logger = l
	}
	return e
}

// WithCache attaches a RedisCache so repeated JWT-source extractions for
// the same bearer token skip re-decoding it. Optional — a nil or
// never-attached cache degrades to parsing every time.
func (e *Extractor) WithCache(c *RedisCache) *Extractor {
	e.cache = c
	return e
}

// HeaderGetter abstracts the inbound header set so REST, bus, and
// JSON-RPC bindings can each supply their own concrete header type.
type HeaderGetter interface {
	Get(name string) string
}

// Extract runs the full priority-ordered pipeline: JWT (from the
// Authorization header) > headers > payload > query parameters. The first
// source that yields a non-empty TenantInfo wins; sources that error are
// handled per cfg.OnErrorPolicy. Returns (nil, nil) if no source yields a
// result.
func (e *Extractor) Extract(headers HeaderGetter, payload map[string]any, query map[string]string) (*TenantInfo, error) {
	if !e.cfg.Enabled {
		return nil, nil
	}

	type step struct {
		source string
		run    func() (*TenantInfo, error)
	}
	steps := []step{
		{"jwt", func() (*TenantInfo, error) {
			if headers == nil {
				return nil, nil
			}
			auth := headers.Get("Authorization")
			if auth == "" {
				auth = headers.Get("authorization")
			}
			if auth == "" {
				return nil, nil
			}
			return e.extractFromJWT(auth)
		}},
		{"headers", func() (*TenantInfo, error) {
			if headers == nil {
				return nil, nil
			}
			return e.extractFromHeaders(headers)
		}},
		{"payload", func() (*TenantInfo, error) {
			if payload == nil {
				return nil, nil
			}
			return e.extractFromPayload(payload)
		}},
		{"query", func() (*TenantInfo, error) {
			if query == nil {
				return nil, nil
			}
			return e.extractFromQuery(query)
		}},
	}

	for _, s := range steps {
		info, err := s.run()
		if err != nil {
			switch e.cfg.OnErrorPolicy {
			case PolicyFailFast:
				return nil, err
			case PolicyWarnContinue:
				e.logger.Warnw("tenant extraction source failed, continuing", "source", s.source, "error", err)
				continue
			default: // PolicySilent
				continue
			}
		}
		if info != nil {
			return info, nil
		}
	}

	return nil, nil
}

func (e *Extractor) extractFromJWT(authHeader string) (*TenantInfo, error) {
	token := strings.TrimPrefix(authHeader, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if token == authHeader && !strings.HasPrefix(authHeader, "Bearer") {
		// Not bearer-prefixed; still attempt to treat the whole value as a token.
		token = authHeader
	}

	var digest string
	if e.cache != nil {
		digest = tokenDigest(token)
		if info, ok := e.cache.Get(context.Background(), digest); ok {
			return info, nil
		}
	}

	claims, err := ParseClaimsUnverified(token)
	if err != nil {
		return nil, err
	}

	tenantID := claims.ExtractTenantID()
	if tenantID == "" {
		return nil, nil
	}

	info := &TenantInfo{
		TenantID:   tenantID,
		OnBehalfOf: claims.ExtractOnBehalfOf(),
		Source:     SourceJWT,
		Context:    map[string]any{"subject": claims.Subject, "issuer": claims.Issuer},
	}
	if e.cache != nil {
		_ = e.cache.Set(context.Background(), digest, info)
	}
	return info, nil
}

// tokenDigest hashes a bearer token for use as a cache key so the cache
// never stores bearer material verbatim.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (e *Extractor) extractFromHeaders(headers HeaderGetter) (*TenantInfo, error) {
	for _, name := range e.cfg.HeaderNames {
		if v := headers.Get(name); v != "" {
			if strings.TrimSpace(v) == "" {
				return nil, qerrors.New(qerrors.KindTenantExtraction, "header %q decode failed: whitespace-only value", name)
			}
			return &TenantInfo{
				TenantID: v,
				Source:   SourceHeaders,
				Context:  map[string]any{"header": name},
			}, nil
		}
	}
	return nil, nil
}

func (e *Extractor) extractFromPayload(payload map[string]any) (*TenantInfo, error) {
	for _, pointer := range e.cfg.PayloadPointers {
		v, found := walkPointer(payload, pointer)
		if !found {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, qerrors.New(qerrors.KindTenantExtraction, "invalid claim type at payload pointer %q: expected string", pointer)
		}
		if s == "" {
			continue
		}
		return &TenantInfo{
			TenantID: s,
			Source:   SourcePayload,
			Context:  map[string]any{"pointer": pointer},
		}, nil
	}
	return nil, nil
}

func (e *Extractor) extractFromQuery(query map[string]string) (*TenantInfo, error) {
	for _, name := range e.cfg.QueryParamNames {
		if v, ok := query[name]; ok && v != "" {
			return &TenantInfo{
				TenantID: v,
				Source:   SourceQuery,
				Context:  map[string]any{"param": name},
			}, nil
		}
	}
	return nil, nil
}

// walkPointer resolves a dotted path ("a.b.c") against a decoded JSON
// object. It tolerates json.Number/string/float payload shapes.
func walkPointer(payload map[string]any, pointer string) (any, bool) {
	parts := strings.Split(pointer, ".")
	var cur any = payload
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// DecodePayload is a convenience for callers holding raw JSON bytes rather
// than a decoded map.
func DecodePayload(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, qerrors.Wrap(qerrors.KindTenantExtraction, err, "payload decode failed")
	}
	return m, nil
}
