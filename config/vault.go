package config

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets, generalized
// from a flat "read this path" helper into a generic reference resolver
// that returns a single string out of a secret payload rather than the
// whole KV map. Nothing else in this module calls it: bus TLS material and
// JWKS settings are read as plain configuration values.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetSecret reads a secret at the given path and returns the raw data map.
// For KV v2 backends the caller must unwrap the nested "data" key.
func (s *SecretManager) GetSecret(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// GetKV2 is a convenience wrapper that reads from a KV v2 backend and
// returns the inner "data" map, unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	raw, err := s.GetSecret(path)
	if err != nil {
		return nil, err
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// SecretRef is a "vault:<path>#<field>" reference, e.g.
// "vault:secret/data/bus/tls#client_cert". A ref with no "vault:" prefix is
// returned unchanged by Resolve, so plain literal config values and
// Vault-backed ones share one call site.
type SecretRef string

const vaultRefPrefix = "vault:"

// Resolve looks up a SecretRef. References without the "vault:" prefix are
// treated as literal values and returned as-is — callers never need to
// branch on whether a given config field happens to be secret-backed.
func (s *SecretManager) Resolve(ref SecretRef) (string, error) {
	raw := string(ref)
	if len(raw) < len(vaultRefPrefix) || raw[:len(vaultRefPrefix)] != vaultRefPrefix {
		return raw, nil
	}

	rest := raw[len(vaultRefPrefix):]
	path, field := splitFragment(rest)
	if field == "" {
		return "", fmt.Errorf("secret ref %q is missing a #field selector", ref)
	}

	data, err := s.GetKV2(path)
	if err != nil {
		return "", err
	}
	value, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("secret ref %q: field %q is missing or not a string", ref, field)
	}
	return value, nil
}

func splitFragment(s string) (path, field string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '#' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
