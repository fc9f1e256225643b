package security

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockPgExecer is a hand-rolled gomock double for pgExecer; the
// interface is narrow enough that a generated mock buys nothing.
type mockPgExecer struct {
	ctrl     *gomock.Controller
	execFn   func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func newMockPgExecer(ctrl *gomock.Controller) *mockPgExecer {
	return &mockPgExecer{ctrl: ctrl}
}

func (m *mockPgExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresAuditSink_LogEvent_ExecutesInsert(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotSQL string
	var gotArgs []any
	mock := newMockPgExecer(ctrl)
	mock.execFn = func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		gotArgs = args
		return pgconn.CommandTag{}, nil
	}

	sink := newPostgresAuditSinkWithExecer(mock)
	err := sink.LogAuthentication("user-1", "10.0.0.1", ResultSuccess)
	require.NoError(t, err)

	require.Contains(t, gotSQL, "INSERT INTO security_audit_events")
	require.Equal(t, "user-1", gotArgs[4])
	require.Equal(t, "10.0.0.1", gotArgs[5])
}

func TestPostgresAuditSink_LogEvent_WrapsExecError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mock := newMockPgExecer(ctrl)
	mock.execFn = func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}

	sink := newPostgresAuditSinkWithExecer(mock)
	err := sink.LogAuthorization("user-1", "report:42", "read", ResultBlocked)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to insert audit event into postgres")
}
