// Package config implements the layered configuration source: process
// environment, then a `.env` file (loaded without overriding already-set
// variables). It is the one source that feeds natsclient.Config,
// security.Config, and tenant.ExtractionConfig. Vault-backed secret
// references are resolved separately through SecretManager.Resolve; the
// *FromEnv builders do not call it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/qollective/qollective-go/natsclient"
	"github.com/qollective/qollective-go/security"
	"github.com/qollective/qollective-go/tenant"
)

// LoadDotEnv loads a `.env` file at path, if present, without overriding
// variables already set in the process environment. A missing file is not
// an error — most deployments never ship one.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func lookupString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func lookupBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func lookupDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func lookupCSV(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BusConfigFromEnv builds a natsclient.Config from QOLLECTIVE_NATS_*
// variables layered on top of DefaultConfig.
func BusConfigFromEnv() natsclient.Config {
	urls := lookupCSV("QOLLECTIVE_NATS_URLS")
	base := "nats://localhost:4222"
	if len(urls) > 0 {
		base = urls[0]
	}
	cfg := natsclient.DefaultConfig(base)
	if len(urls) > 0 {
		cfg.ConnectionURLs = urls
	}
	cfg.ClientName = lookupString("QOLLECTIVE_NATS_CLIENT_NAME", cfg.ClientName)
	cfg.RequestTimeout = lookupDuration("QOLLECTIVE_NATS_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.Streams = parseStreams(lookupString("QOLLECTIVE_NATS_STREAMS", ""))
	cfg.TLS.Enabled = lookupBool("QOLLECTIVE_NATS_TLS_ENABLED", cfg.TLS.Enabled)
	cfg.TLS.CACertPath = lookupString("QOLLECTIVE_NATS_TLS_CA_CERT_PATH", cfg.TLS.CACertPath)
	cfg.TLS.CertPath = lookupString("QOLLECTIVE_NATS_TLS_CERT_PATH", cfg.TLS.CertPath)
	cfg.TLS.KeyPath = lookupString("QOLLECTIVE_NATS_TLS_KEY_PATH", cfg.TLS.KeyPath)
	return cfg
}

// parseStreams decodes the QOLLECTIVE_NATS_STREAMS declaration, a
// comma-separated list of "NAME:subject;subject" entries, e.g.
// "EVENTS:events.>;audit.>,ORDERS:orders.*". Malformed entries are
// skipped rather than rejected, consistent with the rest of the env layer.
func parseStreams(v string) []natsclient.StreamConfig {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []natsclient.StreamConfig
	for _, entry := range strings.Split(v, ",") {
		name, rest, found := strings.Cut(strings.TrimSpace(entry), ":")
		if !found || name == "" {
			continue
		}
		var subjects []string
		for _, s := range strings.Split(rest, ";") {
			if s = strings.TrimSpace(s); s != "" {
				subjects = append(subjects, s)
			}
		}
		if len(subjects) == 0 {
			continue
		}
		out = append(out, natsclient.StreamConfig{Name: name, Subjects: subjects})
	}
	return out
}

// SecurityConfigFromEnv builds a security.Config from a named preset with
// the standard QOLLECTIVE_JWT_*/QOLLECTIVE_STORAGE_*/... overrides applied
// on top, delegating to security.Builder for the override logic itself.
func SecurityConfigFromEnv(preset string) security.Config {
	return security.FromPreset(preset).ApplyEnvironmentOverrides().Build()
}

// TenantExtractionConfigFromEnv builds a tenant.ExtractionConfig from
// QOLLECTIVE_TENANT_* variables layered on tenant.DefaultExtractionConfig.
func TenantExtractionConfigFromEnv() tenant.ExtractionConfig {
	cfg := tenant.DefaultExtractionConfig()
	cfg.Enabled = lookupBool("QOLLECTIVE_TENANT_EXTRACTION_ENABLED", cfg.Enabled)
	if policy, ok := os.LookupEnv("QOLLECTIVE_TENANT_ERROR_POLICY"); ok {
		cfg.OnErrorPolicy = tenant.ErrorPolicy(policy)
	}
	if headers := lookupCSV("QOLLECTIVE_TENANT_HEADER_NAMES"); headers != nil {
		cfg.HeaderNames = headers
	}
	if pointers := lookupCSV("QOLLECTIVE_TENANT_PAYLOAD_POINTERS"); pointers != nil {
		cfg.PayloadPointers = pointers
	}
	if params := lookupCSV("QOLLECTIVE_TENANT_QUERY_PARAM_NAMES"); params != nil {
		cfg.QueryParamNames = params
	}
	return cfg
}

// RedisURLFromEnv returns QOLLECTIVE_REDIS_URL, or "" if unset — callers
// use this to decide whether to attach a tenant.RedisCache / RedisAuditSink
// at all, since both are optional domain-stack extensions.
func RedisURLFromEnv() string {
	return lookupString("QOLLECTIVE_REDIS_URL", "")
}

// LLMProviderConfig carries the external provider overrides recognized
// under the LLM_* prefix — consumed by tool-call handlers that proxy to an
// LLM provider rather than by the framework core itself.
type LLMProviderConfig struct {
	Provider string
	APIKey   SecretRef
	BaseURL  string
	Model    string
}

// LLMProviderConfigFromEnv reads the LLM_* environment block.
func LLMProviderConfigFromEnv() LLMProviderConfig {
	return LLMProviderConfig{
		Provider: lookupString("LLM_PROVIDER", ""),
		APIKey:   SecretRef(lookupString("LLM_API_KEY", "")),
		BaseURL:  lookupString("LLM_BASE_URL", ""),
		Model:    lookupString("LLM_MODEL", ""),
	}
}
