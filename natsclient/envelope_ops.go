package natsclient

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
)

// Go forbids type parameters on methods, so the envelope-typed bus
// operations are free functions taking *Client explicitly, while the
// raw-byte operations remain plain methods on *Client.

// Publish encodes env and publishes it to subject with no reply expected.
func Publish[T any](ctx context.Context, c *Client, subject string, env envelope.Envelope[T]) error {
	data, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	return c.PublishRaw(ctx, subject, data)
}

// PublishToQueueGroup publishes env to subject; NATS load-balances
// delivery across queueGroup members on the subscriber side (queue
// membership is declared by the subscriber, not the publisher, so this
// is equivalent to Publish — it exists for call-site clarity).
func PublishToQueueGroup[T any](ctx context.Context, c *Client, subject string, env envelope.Envelope[T]) error {
	return Publish(ctx, c, subject, env)
}

// SendEnvelope sends env and awaits a single typed reply until ctx
// expires; when ctx carries no deadline, Config.RequestTimeout bounds the
// wait. Cancellation and deadline expiry both return a KindNatsTimeout
// error, and neither emits a ConnectionEvent. It manages its own ephemeral inbox subscription and a
// pending-request table (c.pending) rather than relying on nats.Conn's
// built-in Request, so a caller can observe zero residual entries in
// that table once a request has timed out or errored.
func SendEnvelope[T, R any](ctx context.Context, c *Client, subject string, env envelope.Envelope[T]) (envelope.Envelope[R], error) {
	var zero envelope.Envelope[R]

	if c.disabled {
		return zero, qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	data, err := envelope.Encode(env)
	if err != nil {
		return zero, err
	}

	inbox := nats.NewInbox()
	pr := &pendingRequest{ch: make(chan *nats.Msg, 1), closed: make(chan struct{})}
	c.pending.Store(inbox, pr)
	defer c.pending.Delete(inbox)

	sub, err := c.conn.Subscribe(inbox, func(msg *nats.Msg) {
		pr.complete(msg)
	})
	if err != nil {
		return zero, qerrors.Wrap(qerrors.KindNatsSubject, err, "failed to create reply inbox for %q", subject)
	}
	defer sub.Unsubscribe()

	if err := c.conn.PublishRequest(subject, inbox, data); err != nil {
		pr.abort()
		c.metrics.recordError()
		return zero, qerrors.Wrap(qerrors.KindNatsMessage, err, "failed to send request on %q", subject)
	}
	c.metrics.recordBytesSent(len(data))

	select {
	case msg := <-pr.ch:
		c.metrics.recordBytesReceived(len(msg.Data))
		resp, derr := envelope.Decode[R](msg.Data)
		if derr != nil {
			return zero, derr
		}
		return resp, nil
	case <-ctx.Done():
		pr.abort()
		c.metrics.recordError()
		return zero, qerrors.Wrap(qerrors.KindNatsTimeout, ctx.Err(), "request to %q timed out waiting for reply", subject)
	}
}

// SubscribeEnvelope yields a channel of decoded request envelopes on
// subject. Malformed payloads are dropped with a logged warning rather
// than surfaced on the channel, so one bad message cannot wedge the
// consumer loop.
func SubscribeEnvelope[T any](ctx context.Context, c *Client, subject, queueGroup string) (<-chan envelope.Envelope[T], error) {
	raw, err := c.Subscribe(ctx, subject, queueGroup)
	if err != nil {
		return nil, err
	}

	out := make(chan envelope.Envelope[T], 64)
	go func() {
		defer close(out)
		for msg := range raw {
			env, derr := envelope.Decode[T](msg.Data)
			if derr != nil {
				c.log.Warn(fmt.Sprintf("dropping malformed envelope on %q: %v", subject, derr))
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// RespondEnvelope encodes resp and publishes it to msg's reply subject,
// completing a SendEnvelope caller's pending request from the server side.
func RespondEnvelope[R any](c *Client, msg *nats.Msg, resp envelope.Envelope[R]) error {
	if c.disabled {
		return qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}
	if msg.Reply == "" {
		return qerrors.New(qerrors.KindNatsMessage, "message has no reply subject to respond to")
	}
	data, err := envelope.Encode(resp)
	if err != nil {
		return err
	}
	if err := c.conn.Publish(msg.Reply, data); err != nil {
		return qerrors.Wrap(qerrors.KindNatsMessage, err, "failed to publish response to %q", msg.Reply)
	}
	c.metrics.recordBytesSent(len(data))
	return nil
}
