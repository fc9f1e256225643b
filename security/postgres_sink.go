package security

import (
	"context"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	qerrors "github.com/qollective/qollective-go/errors"
)

// pgExecer is the slice of *pgxpool.Pool's method set the sink needs,
// extracted so tests can supply a hand-rolled double instead of a live
// database.
type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresAuditSink persists audit events durably — the reference
// persistence layer a NatsAuditSink subscriber would write into.
type PostgresAuditSink struct {
	pool pgExecer
}

// NewPostgresPool parses dsn and returns an OTel-instrumented pool.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindConfig, err, "failed to parse postgres dsn")
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindExternal, err, "failed to connect to postgres")
	}
	return pool, nil
}

// NewPostgresAuditSink wraps an already-connected pool. The caller owns
// the pool's lifecycle (Close).
func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

// newPostgresAuditSinkWithExecer is the test seam behind NewPostgresAuditSink.
func newPostgresAuditSinkWithExecer(pool pgExecer) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

const insertAuditEventSQL = `
INSERT INTO security_audit_events
	(event_id, occurred_at, event_type, severity, subject, source_ip, user_agent,
	 resource, action, result, details, risk_score)
VALUES
	($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
	 NULLIF($8, ''), $9, $10, $11, $12)
ON CONFLICT (event_id) DO NOTHING`

func (s *PostgresAuditSink) LogEvent(e Event) error {
	data, err := marshalEvent(e)
	if err != nil {
		return qerrors.Wrap(qerrors.KindSerialization, err, "failed to serialize audit event")
	}

	var riskScore *int16
	if e.RiskScore != nil {
		v := int16(*e.RiskScore)
		riskScore = &v
	}

	_, err = s.pool.Exec(context.Background(), insertAuditEventSQL,
		e.EventID, e.Timestamp, string(e.EventType), string(e.Severity),
		e.Subject, e.SourceIP, e.UserAgent, e.Resource, e.Action, string(e.Result),
		data, riskScore,
	)
	if err != nil {
		return qerrors.Wrap(qerrors.KindExternal, err, "failed to insert audit event into postgres")
	}
	return nil
}

func (s *PostgresAuditSink) LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error {
	return s.LogEvent(jwtValidationEvent(tokenID, subject, result, details))
}

func (s *PostgresAuditSink) LogAuthentication(subject, sourceIP string, result Result) error {
	return s.LogEvent(authenticationEvent(subject, sourceIP, result))
}

func (s *PostgresAuditSink) LogAuthorization(subject, resource, action string, result Result) error {
	return s.LogEvent(authorizationEvent(subject, resource, action, result))
}
