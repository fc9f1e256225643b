package natsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	qerrors "github.com/qollective/qollective-go/errors"
)

// Client wraps a NATS connection and its JetStream context, adding a
// connection-state machine, metrics, event broadcasting, and request
// correlation on top of the raw connection.
type Client struct {
	cfg Config
	log *zap.Logger

	conn *nats.Conn
	js   nats.JetStreamContext

	state     stateMachine
	metrics   metricsRecorder
	events    eventBroadcaster
	disabled  bool

	pending sync.Map // reply subject (string) -> *pendingRequest
}

type pendingRequest struct {
	ch     chan *nats.Msg
	closed chan struct{}
	once   sync.Once
}

func (p *pendingRequest) complete(msg *nats.Msg) {
	p.once.Do(func() {
		p.ch <- msg
		close(p.closed)
	})
}

func (p *pendingRequest) abort() {
	p.once.Do(func() {
		close(p.closed)
	})
}

// NewClient connects to NATS and initializes a JetStream context. If cfg
// describes no connection URLs, NewClient returns a disabled client
// whose bus methods all fail with errors.KindFeatureNotEnabled rather
// than erroring at construction time.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{cfg: cfg, log: logger}

	if !cfg.Enabled() {
		c.disabled = true
		c.state.set(StateDisconnected)
		return c, nil
	}

	c.state.set(StateConnecting)
	c.metrics.recordConnectAttempt()

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.RetryAttempts),
		// Exponential backoff: 100ms doubling per attempt, capped at RetryMaxDelay.
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			delay := 100 * time.Millisecond
			for i := 1; i < attempts && delay < cfg.RetryMaxDelay; i++ {
				delay *= 2
			}
			if delay > cfg.RetryMaxDelay {
				delay = cfg.RetryMaxDelay
			}
			return delay
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.state.set(StateReconnecting)
			c.metrics.recordError()
			c.events.publish(ConnectionEvent{State: StateReconnecting, Timestamp: time.Now().UTC(), Message: fmt.Sprintf("disconnected: %v", err)})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.state.set(StateConnected)
			c.events.publish(ConnectionEvent{State: StateConnected, Timestamp: time.Now().UTC(), Message: "reconnected"})
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.state.set(StateDisconnected)
			c.events.publish(ConnectionEvent{State: StateDisconnected, Timestamp: time.Now().UTC(), Message: "connection closed"})
		}),
	}
	if cfg.ClientName != "" {
		opts = append(opts, nats.Name(cfg.ClientName))
	}

	if tlsCfg, err := buildTLSConfig(cfg.TLS); err != nil {
		return nil, qerrors.Wrap(qerrors.KindNatsAuth, err, "failed to build TLS config")
	} else if tlsCfg != nil {
		opts = append(opts, nats.Secure(tlsCfg))
	}
	if cfg.TLS.HandshakeTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.TLS.HandshakeTimeout))
	}

	url := cfg.ConnectionURLs[0]
	if len(cfg.ConnectionURLs) > 1 {
		url = joinURLs(cfg.ConnectionURLs)
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		c.metrics.recordError()
		c.state.set(StateDisconnected)
		return nil, qerrors.Wrap(qerrors.KindNatsConnection, err, "failed to connect to NATS")
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		c.metrics.recordError()
		return nil, qerrors.Wrap(qerrors.KindNatsConnection, err, "failed to initialize JetStream")
	}

	c.conn = nc
	c.js = js
	c.state.set(StateConnected)
	c.metrics.recordConnectSuccess()
	c.events.publish(ConnectionEvent{State: StateConnected, Timestamp: time.Now().UTC(), Message: "connected"})
	c.log.Info("NATS JetStream connected", zap.Strings("urls", cfg.ConnectionURLs))

	return c, nil
}

func joinURLs(urls []string) string {
	out := urls[0]
	for _, u := range urls[1:] {
		out += "," + u
	}
	return out
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.VerificationMode == TLSSkip {
		tlsCfg.InsecureSkipVerify = true
	}

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("invalid ca cert at %s", cfg.CACertPath)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.VerificationMode == TLSMutualTLS && cfg.CertPath != "" && cfg.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client keypair: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// ConnectionState returns the client's current lifecycle state.
func (c *Client) ConnectionState() ConnectionState { return c.state.get() }

// IsHealthy reports whether the client believes it can currently publish
// and request.
func (c *Client) IsHealthy() bool {
	if c.disabled {
		return false
	}
	return c.state.get() == StateConnected && c.conn != nil && c.conn.IsConnected()
}

// ConnectionMetrics returns a snapshot of accumulated connection counters.
func (c *Client) ConnectionMetrics() ConnectionMetrics { return c.metrics.snapshot() }

// PendingRequestCount returns the number of in-flight SendEnvelope calls
// awaiting a reply. Used by tests to assert the correlation table is
// empty once a request has timed out or completed.
func (c *Client) PendingRequestCount() int {
	n := 0
	c.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// ConnectionEvents returns a channel of state transitions and notable
// incidents. Each call registers a new independent subscriber channel.
func (c *Client) ConnectionEvents() <-chan ConnectionEvent { return c.events.subscribe() }

// Disconnect drives a graceful Draining -> Disconnected transition,
// preferring Drain() (which flushes in-flight publishes and subscription
// deliveries) with a Close() fallback on drain error or context expiry.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.disabled || c.conn == nil {
		c.state.set(StateDisconnected)
		return nil
	}

	c.state.set(StateDraining)
	c.events.publish(ConnectionEvent{State: StateDraining, Timestamp: time.Now().UTC(), Message: "draining"})

	done := make(chan error, 1)
	go func() { done <- c.conn.Drain() }()

	select {
	case err := <-done:
		if err != nil {
			c.conn.Close()
		}
	case <-ctx.Done():
		c.conn.Close()
	}

	c.state.set(StateDisconnected)
	c.events.publish(ConnectionEvent{State: StateDisconnected, Timestamp: time.Now().UTC(), Message: "disconnected"})
	return nil
}

// PublishRaw publishes bytes with no envelope interpretation, for interop
// with non-envelope peers.
func (c *Client) PublishRaw(ctx context.Context, subject string, data []byte) error {
	if c.disabled {
		return qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.metrics.recordError()
		return classifyPublishError(err)
	}
	c.metrics.recordBytesSent(len(data))
	return nil
}

// RequestRaw sends bytes and awaits a single raw reply, for interop with
// non-envelope peers.
func (c *Client) RequestRaw(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	if c.disabled {
		return nil, qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		c.metrics.recordError()
		if reqCtx.Err() != nil {
			return nil, qerrors.Wrap(qerrors.KindNatsTimeout, err, "request to %q timed out", subject)
		}
		return nil, classifyPublishError(err)
	}

	c.metrics.recordBytesSent(len(data))
	c.metrics.recordBytesReceived(len(msg.Data))
	c.metrics.recordRoundTrip(time.Since(start))
	return msg.Data, nil
}

// Subscribe yields a pull-style channel of inbound raw messages on subject,
// optionally load-balanced across a queue group.
func (c *Client) Subscribe(ctx context.Context, subject, queueGroup string) (<-chan *nats.Msg, error) {
	if c.disabled {
		return nil, qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}

	out := make(chan *nats.Msg, 64)
	handler := func(msg *nats.Msg) {
		c.metrics.recordBytesReceived(len(msg.Data))
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	var sub *nats.Subscription
	var err error
	if queueGroup != "" {
		sub, err = c.conn.QueueSubscribe(subject, queueGroup, handler)
	} else {
		sub, err = c.conn.Subscribe(subject, handler)
	}
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindNatsSubject, err, "subscribe to %q failed", subject)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(out)
	}()

	return out, nil
}

func classifyPublishError(err error) error {
	if errors.Is(err, nats.ErrMaxPayload) || errors.Is(err, nats.ErrReconnectBufExceeded) {
		return qerrors.Wrap(qerrors.KindNatsMessage, err, "publish rejected: transport buffer full")
	}
	return qerrors.Wrap(qerrors.KindNatsMessage, err, "publish failed")
}
