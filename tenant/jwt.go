// Package tenant implements the protocol-agnostic tenant extraction
// pipeline: JWT parse-only claim extraction, header/payload/query
// extraction, priority resolution across sources, and the configurable
// error-handling strategy that governs what a failing source does to the
// pipeline.
package tenant

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	qerrors "github.com/qollective/qollective-go/errors"
)

// JwtClaims is a parse-only view of a JWT's standard and tenant-delegation
// claims, with a fallback lookup over the open set of remaining claims.
type JwtClaims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt *int64
	IssuedAt  *int64
	NotBefore *int64

	Tenant           string
	TenantID         string
	Organization     string
	OrgID            string
	OnBehalfOf       string
	DelegateFor      string
	ActingAs         string
	AdditionalClaims map[string]any
}

var tenantFallbackFields = []string{"tenantId", "organizationId", "companyId", "clientId"}
var delegationFallbackFields = []string{"onBehalfOf", "delegateFor", "actingAs", "impersonating"}

// ExtractTenantID resolves the tenant id across the standard claim priority
// tenant > tenant_id > organization > org_id, falling back to the
// additional-claims field names.
func (c JwtClaims) ExtractTenantID() string {
	for _, v := range []string{c.Tenant, c.TenantID, c.Organization, c.OrgID} {
		if v != "" {
			return v
		}
	}
	return firstStringClaim(c.AdditionalClaims, tenantFallbackFields)
}

// ExtractOnBehalfOf resolves the delegate subject across the standard
// claim priority on_behalf_of > delegate_for > acting_as, falling back to
// the additional-claims field names.
func (c JwtClaims) ExtractOnBehalfOf() string {
	for _, v := range []string{c.OnBehalfOf, c.DelegateFor, c.ActingAs} {
		if v != "" {
			return v
		}
	}
	return firstStringClaim(c.AdditionalClaims, delegationFallbackFields)
}

func firstStringClaim(claims map[string]any, fields []string) string {
	for _, field := range fields {
		if v, ok := claims[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// IsValidJwtFormat reports whether token looks like a JWT: three
// dot-separated, non-empty segments.
func IsValidJwtFormat(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// ParseClaimsUnverified decodes a JWT's claims without verifying its
// signature. This is the framework's only required JWT code path: it never
// reads or requires a signing key. Signature verification, when performed
// at all, is a separate opt-in layer (see security.SignatureVerifier).
func ParseClaimsUnverified(token string) (JwtClaims, error) {
	if !IsValidJwtFormat(token) {
		return JwtClaims{}, qerrors.New(qerrors.KindTenantExtraction, "invalid JWT format: expected 3 dot-separated parts")
	}

	parser := jwt.NewParser()
	var raw jwt.MapClaims
	_, _, err := parser.ParseUnverified(token, &raw)
	if err != nil {
		return JwtClaims{}, qerrors.Wrap(qerrors.KindTenantExtraction, err, "failed to parse JWT payload")
	}

	return claimsFromMap(raw), nil
}

func claimsFromMap(raw jwt.MapClaims) JwtClaims {
	claims := JwtClaims{AdditionalClaims: make(map[string]any, len(raw))}

	known := map[string]func(string){
		"sub":            func(v string) { claims.Subject = v },
		"iss":            func(v string) { claims.Issuer = v },
		"tenant":         func(v string) { claims.Tenant = v },
		"tenant_id":      func(v string) { claims.TenantID = v },
		"organization":   func(v string) { claims.Organization = v },
		"org_id":         func(v string) { claims.OrgID = v },
		"on_behalf_of":   func(v string) { claims.OnBehalfOf = v },
		"delegate_for":   func(v string) { claims.DelegateFor = v },
		"acting_as":      func(v string) { claims.ActingAs = v },
	}

	for key, value := range raw {
		if setter, ok := known[key]; ok {
			if s, ok := value.(string); ok {
				setter(s)
				continue
			}
		}
		switch key {
		case "aud":
			claims.Audience = audienceStrings(value)
		case "exp":
			claims.ExpiresAt = numericClaim(value)
		case "iat":
			claims.IssuedAt = numericClaim(value)
		case "nbf":
			claims.NotBefore = numericClaim(value)
		default:
			claims.AdditionalClaims[key] = value
		}
	}

	return claims
}

func numericClaim(v any) *int64 {
	switch n := v.(type) {
	case float64:
		i := int64(n)
		return &i
	case int64:
		return &n
	}
	return nil
}

func audienceStrings(v any) []string {
	switch aud := v.(type) {
	case string:
		return []string{aud}
	case []any:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
