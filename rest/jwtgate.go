package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qollective/qollective-go/security"
	"github.com/qollective/qollective-go/tenant"
)

// Echo context keys set by JwtGate for downstream bindings to pick up
// into SecurityMeta.
const (
	AuthMethodContextKey  = "qollective.auth_method"
	AuthSubjectContextKey = "qollective.auth_subject"
)

// Auth method values recorded in SecurityMeta.AuthMethod.
const (
	AuthMethodJwtVerified   = "jwt-verified"
	AuthMethodJwtUnverified = "jwt-unverified"
)

// TokenVerifier is the slice of security.SignatureVerifier the gate needs,
// extracted so tests can stub verification without a live JWKS endpoint.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (security.VerifiedClaims, error)
}

// JwtGate enforces the require-verified-token policy at the transport
// edge, before the handler pipeline runs. Verification failure rejects
// the request and emits one jwt-validation-failure audit event whose
// details still carry the tenant the (unverified but parseable) token
// named, for forensics — extraction and verification stay independent
// passes. Fail-closed: no token, unknown key, and bad signature all
// reject.
type JwtGate struct {
	Verifier TokenVerifier
	Audit    security.AuditLogger
	Log      *zap.Logger
}

// NewJwtGate builds the gate. audit may be nil to skip event emission.
func NewJwtGate(verifier TokenVerifier, audit security.AuditLogger, log *zap.Logger) *JwtGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &JwtGate{Verifier: verifier, Audit: audit, Log: log}
}

// Middleware returns the echo middleware enforcing the gate. Mount it on
// the routes that need it rather than globally, so health probes stay open.
func (g *JwtGate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get("Authorization"))
			if token == "" {
				g.logAuthentication("", c.RealIP(), security.ResultBlocked)
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token required")
			}

			verified, err := g.Verifier.Verify(c.Request().Context(), token)
			if err != nil {
				g.logJwtFailure(token, err)
				return echo.NewHTTPError(http.StatusUnauthorized, "token verification failed")
			}

			g.logJwtSuccess(verified.Subject)
			c.Set(AuthMethodContextKey, AuthMethodJwtVerified)
			c.Set(AuthSubjectContextKey, verified.Subject)
			return next(c)
		}
	}
}

func bearerToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if strings.HasPrefix(authHeader, "bearer ") {
		return strings.TrimPrefix(authHeader, "bearer ")
	}
	return ""
}

func (g *JwtGate) logAuthentication(subject, ip string, result security.Result) {
	if g.Audit == nil {
		return
	}
	if err := g.Audit.LogAuthentication(subject, ip, result); err != nil {
		g.Log.Warn("audit write failed", zap.Error(err))
	}
}

func (g *JwtGate) logJwtFailure(token string, verifyErr error) {
	if g.Audit == nil {
		return
	}
	details := map[string]any{"reason": verifyErr.Error()}
	subject := ""
	if claims, err := tenant.ParseClaimsUnverified(token); err == nil {
		subject = claims.Subject
		if tid := claims.ExtractTenantID(); tid != "" {
			details["unverified_tenant"] = tid
		}
	}
	if err := g.Audit.LogJwtValidation("", subject, security.ResultFailure, details); err != nil {
		g.Log.Warn("audit write failed", zap.Error(err))
	}
}

func (g *JwtGate) logJwtSuccess(subject string) {
	if g.Audit == nil {
		return
	}
	if err := g.Audit.LogJwtValidation("", subject, security.ResultSuccess, nil); err != nil {
		g.Log.Warn("audit write failed", zap.Error(err))
	}
}
