package jsonrpc_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qollective/qollective-go/envelope"
	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/jsonrpc"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/tenant"
)

type createParams struct {
	Name string `json:"name"`
}
type createResult struct {
	Created bool `json:"created"`
}

func createHandler(err error) handler.ContextDataHandler[createParams, createResult] {
	return handler.ContextDataHandlerFunc[createParams, createResult](
		func(ctx context.Context, meta *metadata.Context, data createParams) (createResult, error) {
			if err != nil {
				return createResult{}, err
			}
			return createResult{Created: true}, nil
		},
	)
}

func decodeResponse(t *testing.T, raw []byte) jsonrpc.JsonRpcResponse[createResult] {
	t.Helper()
	var resp jsonrpc.JsonRpcResponse[createResult]
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestAdapterMalformedBytesYieldParseError(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(nil), nil, nil)

	resp := decodeResponse(t, a.Handle(context.Background(), []byte("{not json"), nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeParseError, resp.Error.Code)
}

func TestAdapterRejectsMissingMethodAndVersion(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(nil), nil, nil)

	resp := decodeResponse(t, a.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","params":{}}`), nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
}

func TestAdapterDispatchesAndPreservesIdentity(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(nil), nil, nil)

	req := jsonrpc.JsonRpcRequest[createParams]{
		JsonRPC: "2.0",
		Method:  "widgets/create",
		Params:  createParams{Name: "sprocket"},
		ID:      json.RawMessage(`7`),
		Meta: envelope.Meta{
			RequestID: "R1",
			Tenant:    envelope.StringField("acme"),
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	resp := decodeResponse(t, a.Handle(context.Background(), raw, nil))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Created)
	assert.Equal(t, json.RawMessage(`7`), resp.ID)
	assert.Equal(t, "R1", resp.Meta.RequestID)
	assert.Equal(t, "acme", resp.Meta.TenantOrEmpty())
}

func TestAdapterMethodRestrictionYieldsMethodNotFound(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(nil), nil, nil)
	a.Method = "tools/call"

	raw := []byte(`{"jsonrpc":"2.0","method":"tools/list","params":{},"id":1,"meta":{"requestId":"R1"}}`)
	resp := decodeResponse(t, a.Handle(context.Background(), raw, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestAdapterMapsValidationErrorToInvalidParams(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(qerrors.New(qerrors.KindValidation, "bad field")), nil, nil)

	raw := []byte(`{"jsonrpc":"2.0","method":"widgets/create","params":{"name":""},"id":1,"meta":{"requestId":"R1"}}`)
	resp := decodeResponse(t, a.Handle(context.Background(), raw, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "Validation error: bad field", resp.Error.Message)
	require.NotNil(t, resp.Error.Meta, "error responses still carry response meta")
	assert.Equal(t, "R1", resp.Error.Meta.RequestID)
}

func TestAdapterRunsTenantExtractionFromHeaders(t *testing.T) {
	a := jsonrpc.NewAdapter(createHandler(nil), tenant.New(tenant.DefaultExtractionConfig()), nil)

	raw := []byte(`{"jsonrpc":"2.0","method":"widgets/create","params":{"name":"x"},"id":1,"meta":{"requestId":"R1"}}`)
	headers := metadata.MapHeaders{"X-Tenant-Id": "t-header"}

	resp := decodeResponse(t, a.Handle(context.Background(), raw, headers))
	require.Nil(t, resp.Error)
	assert.Equal(t, "t-header", resp.Meta.TenantOrEmpty())
}
