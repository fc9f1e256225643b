package tenant_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(body)
	return header + "." + payload + ".sig"
}

type headerMap map[string]string

func (h headerMap) Get(name string) string { return h[name] }

func TestExtractJWTTenantThenHeaderFallback(t *testing.T) {
	cfg := tenant.DefaultExtractionConfig()
	ex := tenant.New(cfg)

	token := unsignedJWT(t, map[string]any{"tenant": "t-from-jwt"})
	headers := headerMap{
		"Authorization": "Bearer " + token,
		"X-Tenant-Id":   "t-from-header",
	}

	info, err := ex.Extract(headers, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "t-from-jwt", info.TenantID)
	assert.Equal(t, tenant.SourceJWT, info.Source)

	delete(headers, "Authorization")
	info2, err := ex.Extract(headers, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info2)
	assert.Equal(t, "t-from-header", info2.TenantID)
	assert.Equal(t, tenant.SourceHeaders, info2.Source)
}

func TestExtractPriorityOrderHonored(t *testing.T) {
	cfg := tenant.DefaultExtractionConfig()
	ex := tenant.New(cfg)

	headers := headerMap{"X-Tenant-Id": "t-header"}
	payload := map[string]any{"tenant": "t-payload"}
	query := map[string]string{"tenant": "t-query"}

	info, err := ex.Extract(headers, payload, query)
	require.NoError(t, err)
	assert.Equal(t, "t-header", info.TenantID, "headers outrank payload and query")

	info2, err := ex.Extract(headerMap{}, payload, query)
	require.NoError(t, err)
	assert.Equal(t, "t-payload", info2.TenantID, "payload outranks query")
}

func TestExtractDisabledShortCircuits(t *testing.T) {
	cfg := tenant.DefaultExtractionConfig()
	cfg.Enabled = false
	ex := tenant.New(cfg)

	info, err := ex.Extract(headerMap{"X-Tenant-Id": "t"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestExtractFailFastPropagatesJWTError(t *testing.T) {
	cfg := tenant.DefaultExtractionConfig()
	cfg.OnErrorPolicy = tenant.PolicyFailFast
	ex := tenant.New(cfg)

	headers := headerMap{"Authorization": "Bearer not-a-jwt"}
	_, err := ex.Extract(headers, nil, nil)
	require.Error(t, err)
}

func TestExtractWarnContinuePastJWTError(t *testing.T) {
	cfg := tenant.DefaultExtractionConfig()
	cfg.OnErrorPolicy = tenant.PolicyWarnContinue
	ex := tenant.New(cfg)

	headers := headerMap{
		"Authorization": "Bearer not-a-jwt",
		"X-Tenant-Id":   "t-header",
	}
	info, err := ex.Extract(headers, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "t-header", info.TenantID)
}

func TestJWTParseOnlyNoSigningKeyRequired(t *testing.T) {
	token := unsignedJWT(t, map[string]any{"tenant_id": "t1", "sub": "user-1"})
	claims, err := tenant.ParseClaimsUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.ExtractTenantID())
	assert.Equal(t, "user-1", claims.Subject)
}

func TestApplySetsMetaAndExtension(t *testing.T) {
	info := &tenant.TenantInfo{
		TenantID:   "acme",
		OnBehalfOf: "delegate-1",
		Source:     tenant.SourceJWT,
		Context:    map[string]any{"subject": "u1"},
	}
	m := envelope.Meta{RequestID: "r1"}
	tenant.Apply(info, &m)

	assert.Equal(t, "acme", m.TenantOrEmpty())
	assert.Equal(t, "delegate-1", m.OnBehalfOfOrEmpty())

	section, ok := m.GetExtension("tenant_extraction")
	require.True(t, ok)
	ts := section.(tenant.TenantExtractionSection)
	assert.Equal(t, "jwt", ts.ExtractionSource)
}
