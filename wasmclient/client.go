//go:build js && wasm

// Package wasmclient is the browser-hosted counterpart to natsclient: the
// same envelope and JSON-RPC types, carried over fetch() for
// request/response and a browser WebSocket for streaming, instead of a
// NATS connection. Nothing here touches the network directly beyond what
// the Go wasm runtime already lowers onto fetch/WebSocket; there is no
// reimplementation of transport framing.
package wasmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/qollective/qollective-go/jsonrpc"
)

// MaxBundleSizeBytes documents the size budget this package is held to when
// compiled for js/wasm: the client must stay small enough that shipping it
// to a browser doesn't dominate page load. It is declarative, not enforced
// at build time — there is no portable way to fail `go build` on output
// size — and nothing in this module checks the compiled artifact against
// this constant.
const MaxBundleSizeBytes = 2 * 1024 * 1024

// Config configures a Client.
type Config struct {
	// BaseURL is the origin the client issues fetch() requests against,
	// e.g. "https://api.example.com".
	BaseURL string
	// ToolCallPath is the HTTP path mounted by the server's JSON-RPC
	// binding, e.g. "/rpc".
	ToolCallPath string
}

// Client is a minimal request/response client for calling server-side
// tools from a browser-hosted wasm module. It has no persistent connection
// state: every Call is an independent fetch().
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a Client. The *http.Client's RoundTripper, under
// GOOS=js, is the Go runtime's built-in fetch-backed transport — no custom
// RoundTripper is installed here, since the browser already owns TLS
// validation for same-origin and CORS-approved requests.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{}}
}

// Call issues a single JSON-RPC tool call and decodes the typed result.
// Params and Result travel through the same envelope Meta carried by every
// other binding, so tenant/tracing context set by the caller survives the
// round trip unchanged.
func Call[P, R any](ctx context.Context, c *Client, method string, meta envelope.Meta, params P) (JsonResult[R], error) {
	var zero JsonResult[R]

	req := jsonrpc.JsonRpcRequest[P]{
		JsonRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      json.RawMessage(`1`),
		Meta:    meta,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return zero, qerrors.Wrap(qerrors.KindSerialization, err, "failed to encode tool-call request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.ToolCallPath, bytes.NewReader(body))
	if err != nil {
		return zero, qerrors.Wrap(qerrors.KindTransport, err, "failed to build tool-call request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return zero, qerrors.Wrap(qerrors.KindTransport, err, "tool-call request failed")
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc.JsonRpcResponse[R]
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return zero, qerrors.Wrap(qerrors.KindDeserialization, err, "failed to decode tool-call response")
	}

	if rpcResp.Error != nil {
		return zero, qerrors.New(qerrors.KindRemote, "tool call %q failed: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if rpcResp.Result == nil {
		return zero, qerrors.New(qerrors.KindEnvelope, "tool call %q returned neither result nor error", method)
	}

	return JsonResult[R]{Meta: rpcResp.Meta, Value: *rpcResp.Result}, nil
}

// JsonResult pairs a decoded tool-call result with the response Meta, so
// callers can read propagated tracing/tenant context without a second
// envelope unwrap.
type JsonResult[R any] struct {
	Meta  envelope.Meta
	Value R
}
