//go:build js && wasm

package wasmclient

import (
	"context"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
)

// Stream opens a browser WebSocket against the server's WSBinding
// endpoint and returns a channel of decoded response envelopes. The
// browser owns the handshake and TLS validation; nhooyr.io/websocket's
// js/wasm build lowers onto the browser's native WebSocket object, so
// this is the same library the server-side binding uses, just compiled
// for the other end of the wire.
func Stream[R any](ctx context.Context, wsURL string) (<-chan envelope.Envelope[R], error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindTransport, err, "failed to open websocket stream")
	}

	out := make(chan envelope.Envelope[R])
	go func() {
		defer close(out)
		defer conn.CloseNow()
		for {
			var env envelope.Envelope[R]
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				return
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

// Send dials its own WebSocket connection to wsURL, writes a single request
// envelope using the server WSBinding's envelope-per-message framing, and
// closes the connection. It does not reuse a connection opened by Stream
// and reads no reply.
func Send[T any](ctx context.Context, wsURL string, env envelope.Envelope[T]) error {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return qerrors.Wrap(qerrors.KindTransport, err, "failed to open websocket for send")
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, env); err != nil {
		return qerrors.Wrap(qerrors.KindTransport, err, "failed to write envelope to websocket")
	}
	return nil
}
