package security_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qollective/qollective-go/security"
)

func TestPresetsDifferOnSignatureVerificationAndStorage(t *testing.T) {
	dev := security.Development()
	assert.Equal(t, "default", dev.JwtValidation.Provider)
	assert.False(t, dev.JwtValidation.VerifySignature)
	assert.Equal(t, security.StorageMemory, dev.Storage.Backend)

	prod := security.Production()
	assert.Equal(t, "default", prod.JwtValidation.Provider)
	assert.True(t, prod.JwtValidation.VerifySignature)
	assert.True(t, prod.JwtValidation.RequireVerified)
	assert.Equal(t, security.StorageRedis, prod.Storage.Backend)

	assert.False(t, dev.JwtValidation.RequireVerified)
}

func TestBuilderOverridesOneBlockAndKeepsRestOfPreset(t *testing.T) {
	cfg := security.FromPreset("development").
		WithJwtValidation(security.JwtValidationConfig{
			Provider:        "auth0",
			VerifySignature: true,
			VerifyExpiry:    true,
			Algorithms:      []string{"RS256"},
		}).
		Build()

	assert.Equal(t, "auth0", cfg.JwtValidation.Provider)
	assert.True(t, cfg.JwtValidation.VerifySignature)
	assert.Equal(t, security.StorageMemory, cfg.Storage.Backend)
}

func TestEnvironmentOverridesApplyOnTopOfPreset(t *testing.T) {
	require.NoError(t, os.Setenv("QOLLECTIVE_JWT_PROVIDER", "okta"))
	require.NoError(t, os.Setenv("QOLLECTIVE_STORAGE_BACKEND", "vault"))
	defer os.Unsetenv("QOLLECTIVE_JWT_PROVIDER")
	defer os.Unsetenv("QOLLECTIVE_STORAGE_BACKEND")

	cfg := security.FromPreset("development").ApplyEnvironmentOverrides().Build()

	assert.Equal(t, "okta", cfg.JwtValidation.Provider)
	assert.Equal(t, security.StorageBackend("vault"), cfg.Storage.Backend)
}
