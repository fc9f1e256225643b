package security

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Flusher is implemented by audit sinks that batch writes and need a
// periodic flush rather than writing synchronously on every LogEvent call.
// None of the sinks in this package batch, and none implements Flusher;
// the interface lets a batching sink be handed to MaintenanceScheduler
// without changing the scheduler itself.
type Flusher interface {
	Flush() error
}

// MaintenanceScheduler runs the two periodic security sweeps every
// deployment needs regardless of which audit sink or JWKS verifier it's
// configured with: a JWKS cache refresh (so key rotation on the identity
// provider's side becomes visible before the cache TTL would otherwise
// expire) and an audit-sink flush.
type MaintenanceScheduler struct {
	cron     *cron.Cron
	verifier *SignatureVerifier
	sink     Flusher
	logger   *zap.Logger
}

// NewMaintenanceScheduler builds the scheduler. Either verifier or sink may
// be nil to skip that sweep.
func NewMaintenanceScheduler(verifier *SignatureVerifier, sink Flusher, logger *zap.Logger) *MaintenanceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceScheduler{
		cron:     cron.New(),
		verifier: verifier,
		sink:     sink,
		logger:   logger,
	}
}

// Start registers and starts both sweeps: JWKS refresh every 15 minutes,
// audit flush every minute.
func (s *MaintenanceScheduler) Start() error {
	if s.verifier != nil {
		if _, err := s.cron.AddFunc("@every 15m", s.refreshJWKS); err != nil {
			return err
		}
	}
	if s.sink != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.flushSink); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop drains in-flight jobs and stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *MaintenanceScheduler) refreshJWKS() {
	if err := s.verifier.Refresh(context.Background()); err != nil {
		s.logger.Warn("jwks cache refresh failed", zap.Error(err))
	}
}

func (s *MaintenanceScheduler) flushSink() {
	if err := s.sink.Flush(); err != nil {
		s.logger.Warn("audit sink flush failed", zap.Error(err))
	}
}
