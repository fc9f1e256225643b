package natsclient_test

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/natsclient"
)

func startTestServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // random free port
		JetStream:      true,
		StoreDir:       t.TempDir(),
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	srv, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("test NATS server did not become ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

type pingPayload struct{ Value string }
type pongPayload struct{ Echo string }

func TestDisabledClientReturnsFeatureNotEnabled(t *testing.T) {
	c, err := natsclient.NewClient(natsclient.Config{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.IsHealthy())
	assert.Equal(t, natsclient.StateDisconnected, c.ConnectionState())

	err = c.PublishRaw(context.Background(), "any.subject", []byte("x"))
	require.Error(t, err)
}

func TestConnectReachesConnectedState(t *testing.T) {
	srv := startTestServer(t)
	cfg := natsclient.DefaultConfig(srv.ClientURL())

	c, err := natsclient.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	assert.True(t, c.IsHealthy())
	assert.Equal(t, natsclient.StateConnected, c.ConnectionState())

	metrics := c.ConnectionMetrics()
	assert.Equal(t, uint64(1), metrics.ConnectAttempts)
	assert.Equal(t, uint64(1), metrics.ConnectSuccesses)
}

func TestSendEnvelopeRoundTrip(t *testing.T) {
	srv := startTestServer(t)
	cfg := natsclient.DefaultConfig(srv.ClientURL())
	c, err := natsclient.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	replies, err := c.Subscribe(context.Background(), "ping.subject", "")
	require.NoError(t, err)
	go func() {
		for msg := range replies {
			req, derr := envelope.Decode[pingPayload](msg.Data)
			if derr != nil {
				continue
			}
			resp := envelope.New(envelope.Meta{RequestID: req.Meta.RequestID}, pongPayload{Echo: req.Payload.Value})
			_ = natsclient.RespondEnvelope(c, msg, resp)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := envelope.New(envelope.Meta{RequestID: "r1"}, pingPayload{Value: "hello"})
	resp, err := natsclient.SendEnvelope[pingPayload, pongPayload](ctx, c, "ping.subject", req)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Payload.Echo)
}

func TestSendEnvelopeTimeoutClearsPendingTable(t *testing.T) {
	srv := startTestServer(t)
	cfg := natsclient.DefaultConfig(srv.ClientURL())
	c, err := natsclient.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := envelope.New(envelope.Meta{RequestID: "r2"}, pingPayload{Value: "nobody listens"})
	_, err = natsclient.SendEnvelope[pingPayload, pongPayload](ctx, c, "unanswered.subject", req)
	require.Error(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, c.PendingRequestCount())
}

func TestProvisionStreamsIsIdempotent(t *testing.T) {
	srv := startTestServer(t)
	cfg := natsclient.DefaultConfig(srv.ClientURL())
	cfg.Streams = []natsclient.StreamConfig{
		{Name: "EVENTS", Subjects: []string{"events.>"}},
	}
	c, err := natsclient.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	require.NoError(t, c.ProvisionStreams(context.Background()))
	require.NoError(t, c.ProvisionStreams(context.Background()))

	name, ok, err := c.StreamInfo("events.created")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "EVENTS", name)
}

func TestQueueGroupLoadBalancesDelivery(t *testing.T) {
	srv := startTestServer(t)
	cfg := natsclient.DefaultConfig(srv.ClientURL())
	c, err := natsclient.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := c.Subscribe(ctx, "work.subject", "workers")
	require.NoError(t, err)
	b, err := c.Subscribe(ctx, "work.subject", "workers")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.PublishRaw(context.Background(), "work.subject", []byte("job")))
	}

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 4 {
		select {
		case <-a:
			received++
		case <-b:
			received++
		case <-timeout:
			t.Fatalf("only received %d/4 jobs across queue group members", received)
		}
	}
}
