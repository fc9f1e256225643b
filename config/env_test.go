package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qollective/qollective-go/config"
)

func TestBusConfigFromEnvAppliesOverridesOnTopOfDefault(t *testing.T) {
	t.Setenv("QOLLECTIVE_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("QOLLECTIVE_NATS_CLIENT_NAME", "widget-service")

	cfg := config.BusConfigFromEnv()
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.ConnectionURLs)
	assert.Equal(t, "widget-service", cfg.ClientName)
}

func TestBusConfigFromEnvFallsBackToDefaultWithNoOverrides(t *testing.T) {
	os.Unsetenv("QOLLECTIVE_NATS_URLS")
	os.Unsetenv("QOLLECTIVE_NATS_CLIENT_NAME")

	cfg := config.BusConfigFromEnv()
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.ConnectionURLs)
	assert.Equal(t, "qollective-client", cfg.ClientName)
}

func TestBusConfigFromEnvParsesStreamDeclarations(t *testing.T) {
	t.Setenv("QOLLECTIVE_NATS_STREAMS", "EVENTS:events.>;audit.>,ORDERS:orders.*")

	cfg := config.BusConfigFromEnv()
	require.Len(t, cfg.Streams, 2)
	assert.Equal(t, "EVENTS", cfg.Streams[0].Name)
	assert.Equal(t, []string{"events.>", "audit.>"}, cfg.Streams[0].Subjects)
	assert.Equal(t, "ORDERS", cfg.Streams[1].Name)
}

func TestTenantExtractionConfigFromEnvOverridesHeaderNames(t *testing.T) {
	t.Setenv("QOLLECTIVE_TENANT_HEADER_NAMES", "X-Org-Id, X-Account-Id")

	cfg := config.TenantExtractionConfigFromEnv()
	assert.Equal(t, []string{"X-Org-Id", "X-Account-Id"}, cfg.HeaderNames)
}

func TestSecretManagerResolvePassesThroughNonVaultRefs(t *testing.T) {
	// A literal value (no "vault:" prefix) must resolve without touching
	// the Vault client at all.
	ref := config.SecretRef("plain-literal-value")
	resolved, err := (&config.SecretManager{}).Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, "plain-literal-value", resolved)
}

func TestLoadDotEnvIsNoopWhenFileMissing(t *testing.T) {
	err := config.LoadDotEnv("/nonexistent/path/.env")
	assert.NoError(t, err)
}
