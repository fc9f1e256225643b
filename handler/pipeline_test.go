package handler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct{ Value string }
type echoResponse struct{ OK bool }

func TestDefaultEnvelopeHandlerPreservesRequestIdentity(t *testing.T) {
	inner := handler.ContextDataHandlerFunc[echoRequest, echoResponse](
		func(ctx context.Context, meta *metadata.Context, data echoRequest) (echoResponse, error) {
			return echoResponse{OK: data.Value == "ping"}, nil
		},
	)
	bridge := handler.NewDefaultEnvelopeHandler[echoRequest, echoResponse](inner)

	req := envelope.New(envelope.Meta{
		RequestID: "R1",
		Tenant:    envelope.StringField("acme"),
	}, echoRequest{Value: "ping"})
	time.Sleep(time.Millisecond)

	resp, err := bridge.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "R1", resp.Meta.RequestID)
	assert.Equal(t, "acme", resp.Meta.TenantOrEmpty())
	assert.True(t, resp.Meta.Timestamp.After(req.Meta.Timestamp))
	assert.Nil(t, resp.Error)
	assert.True(t, resp.Payload.OK)
}

func TestDefaultEnvelopeHandlerPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	inner := handler.ContextDataHandlerFunc[echoRequest, echoResponse](
		func(ctx context.Context, meta *metadata.Context, data echoRequest) (echoResponse, error) {
			return echoResponse{}, boom
		},
	)
	bridge := handler.NewDefaultEnvelopeHandler[echoRequest, echoResponse](inner)

	req := envelope.New(envelope.Meta{RequestID: "R1"}, echoRequest{})
	_, err := bridge.Handle(context.Background(), req)
	require.ErrorIs(t, err, boom)
}

func TestDefaultContextDataHandlerIsTransparentPassthrough(t *testing.T) {
	calls := 0
	inner := handler.ContextDataHandlerFunc[echoRequest, echoResponse](
		func(ctx context.Context, meta *metadata.Context, data echoRequest) (echoResponse, error) {
			calls++
			return echoResponse{OK: true}, nil
		},
	)
	wrapped := &handler.DefaultContextDataHandler[echoRequest, echoResponse]{Inner: inner}

	result, err := wrapped.Handle(context.Background(), nil, echoRequest{Value: "x"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, calls)
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string
	mark := func(name string) handler.MiddlewareFunc[echoRequest, echoResponse] {
		return func(next handler.ContextDataHandler[echoRequest, echoResponse]) handler.ContextDataHandler[echoRequest, echoResponse] {
			return handler.ContextDataHandlerFunc[echoRequest, echoResponse](
				func(ctx context.Context, meta *metadata.Context, data echoRequest) (echoResponse, error) {
					order = append(order, name)
					return next.Handle(ctx, meta, data)
				},
			)
		}
	}

	base := handler.ContextDataHandlerFunc[echoRequest, echoResponse](
		func(ctx context.Context, meta *metadata.Context, data echoRequest) (echoResponse, error) {
			order = append(order, "base")
			return echoResponse{}, nil
		},
	)

	chained := handler.Chain(base, mark("outer"), mark("inner"))
	_, err := chained.Handle(context.Background(), nil, echoRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}
