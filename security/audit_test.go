package security_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qollective/qollective-go/security"
)

func TestInMemoryAuditLoggerRecordsJwtValidationOutcome(t *testing.T) {
	logger := security.NewInMemoryAuditLogger()

	require.NoError(t, logger.LogJwtValidation("tok-1", "user-1", security.ResultSuccess, nil))
	require.NoError(t, logger.LogJwtValidation("tok-2", "user-2", security.ResultFailure, map[string]any{"reason": "expired"}))

	assert.Equal(t, 1, logger.CountByType(security.EventJwtValidationSuccess))
	assert.Equal(t, 1, logger.CountByType(security.EventJwtValidationFailure))
}

func TestAuthenticationAndAuthorizationAlwaysStampFixedEventType(t *testing.T) {
	logger := security.NewInMemoryAuditLogger()

	require.NoError(t, logger.LogAuthentication("user-1", "10.0.0.1", security.ResultSuccess))
	require.NoError(t, logger.LogAuthentication("user-2", "10.0.0.2", security.ResultFailure))
	require.NoError(t, logger.LogAuthorization("user-1", "widgets:42", "read", security.ResultSuccess))
	require.NoError(t, logger.LogAuthorization("user-2", "widgets:42", "delete", security.ResultFailure))

	events := logger.Events()
	require.Len(t, events, 4)
	for _, e := range events[:2] {
		assert.Equal(t, security.EventAuthenticationFailure, e.EventType)
	}
	for _, e := range events[2:] {
		assert.Equal(t, security.EventAuthorizationFailure, e.EventType)
	}
	assert.Equal(t, security.ResultSuccess, events[0].Result)
	assert.Equal(t, security.ResultFailure, events[1].Result)
}

func TestFileAuditLoggerAppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger := security.NewFileAuditLogger(path)

	require.NoError(t, logger.LogAuthentication("user-1", "", security.ResultSuccess))
	require.NoError(t, logger.LogAuthentication("user-2", "", security.ResultFailure))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(data))
	assert.Len(t, lines, 2)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
