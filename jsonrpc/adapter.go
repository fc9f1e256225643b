package jsonrpc

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/tenant"
)

// Adapter dispatches raw JSON-RPC request bytes through a
// ContextDataHandler and always produces serialized response bytes —
// transport bindings write the returned slice verbatim, so a malformed
// request yields a well-formed -32700/-32600 response rather than a
// transport-level failure. Request Meta is layered with the transport's
// headers, tenant extraction runs before dispatch, and the response Meta
// follows the preserve-for-response rule on both the success and error
// paths.
type Adapter[T, R any] struct {
	Handler   handler.ContextDataHandler[T, R]
	Extractor *tenant.Extractor
	// Method, when non-empty, is the only method this adapter answers;
	// anything else gets a -32601 response. Empty accepts every method,
	// for handlers (like ToolRegistry) that dispatch on the payload.
	Method string
	Log    *zap.Logger
}

// NewAdapter builds an Adapter around a user handler.
func NewAdapter[T, R any](h handler.ContextDataHandler[T, R], extractor *tenant.Extractor, log *zap.Logger) *Adapter[T, R] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter[T, R]{Handler: h, Extractor: extractor, Log: log}
}

// Handle processes one JSON-RPC request. headers may be nil for
// transports with no header concept.
func (a *Adapter[T, R]) Handle(ctx context.Context, raw []byte, headers metadata.HeaderGetter) []byte {
	var req JsonRpcRequest[T]
	if err := json.Unmarshal(raw, &req); err != nil {
		return a.marshal(NewError[R](json.RawMessage("null"), ParseError("failed to parse JSON-RPC request: "+err.Error())))
	}
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if req.JsonRPC != "2.0" || req.Method == "" {
		return a.marshal(NewError[R](id, InvalidRequest(`request must carry jsonrpc "2.0" and a method`)))
	}
	if a.Method != "" && req.Method != a.Method {
		return a.marshal(NewError[R](id, MethodNotFound(req.Method)))
	}

	meta := metadata.FromHeaders(req.Meta, headers)
	if a.Extractor != nil {
		payloadMap, _ := paramsToMap(req.Params)
		info, err := a.Extractor.Extract(tenantHeaders(headers), payloadMap, nil)
		if err != nil {
			a.Log.Warn("tenant extraction failed", zap.Error(err))
		} else if info != nil {
			tenant.Apply(info, &meta)
		}
	}

	env := envelope.New(meta, req.Params)
	ctxData := metadata.FromMeta(env.Meta)
	result, err := a.Handler.Handle(ctx, ctxData, env.Payload)
	respMeta := ctxData.ToResponseMeta()
	if err != nil {
		rpcErr := FromDomainError(err)
		rpcErr.Meta = &respMeta
		return a.marshal(NewError[R](id, rpcErr))
	}
	return a.marshal(NewResult(id, respMeta, result))
}

func (a *Adapter[T, R]) marshal(resp JsonRpcResponse[R]) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		a.Log.Error("failed to serialize JSON-RPC response", zap.Error(err))
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"failed to serialize response"},"id":null}`)
	}
	return data
}

// paramsToMap re-encodes typed params to a generic map for the tenant
// extractor's payload-pointer walk. Non-object params simply yield nil.
func paramsToMap(params any) (map[string]any, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil
	}
	return m, nil
}

// tenantHeaders bridges the metadata-side header getter to the tenant
// extractor's structurally identical one, tolerating nil.
func tenantHeaders(h metadata.HeaderGetter) tenant.HeaderGetter {
	if h == nil {
		return nil
	}
	return h
}
