// Package handler implements the two-trait handler pipeline: the
// transport-facing EnvelopeHandler and the user-facing ContextDataHandler,
// bridged by DefaultEnvelopeHandler.
package handler

import (
	"context"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/metadata"
)

// EnvelopeHandler is the transport-facing contract: it accepts a request
// envelope and produces a response envelope.
type EnvelopeHandler[T, R any] interface {
	Handle(ctx context.Context, req envelope.Envelope[T]) (envelope.Envelope[R], error)
}

// EnvelopeHandlerFunc adapts a plain function to an EnvelopeHandler.
type EnvelopeHandlerFunc[T, R any] func(ctx context.Context, req envelope.Envelope[T]) (envelope.Envelope[R], error)

func (f EnvelopeHandlerFunc[T, R]) Handle(ctx context.Context, req envelope.Envelope[T]) (envelope.Envelope[R], error) {
	return f(ctx, req)
}

// ContextDataHandler is the user-facing contract: business logic is
// written once against a read-only Context and a typed payload.
type ContextDataHandler[T, R any] interface {
	Handle(ctx context.Context, meta *metadata.Context, data T) (R, error)
}

// ContextDataHandlerFunc adapts a plain function to a ContextDataHandler.
type ContextDataHandlerFunc[T, R any] func(ctx context.Context, meta *metadata.Context, data T) (R, error)

func (f ContextDataHandlerFunc[T, R]) Handle(ctx context.Context, meta *metadata.Context, data T) (R, error) {
	return f(ctx, meta, data)
}

// MiddlewareFunc composes ContextDataHandlers, chained the same way HTTP
// middleware composes handlers but applied at the envelope layer.
type MiddlewareFunc[T, R any] func(next ContextDataHandler[T, R]) ContextDataHandler[T, R]

// Chain applies middlewares in order, so the first middleware in the slice
// is the outermost wrapper (runs first on the way in).
func Chain[T, R any](h ContextDataHandler[T, R], mws ...MiddlewareFunc[T, R]) ContextDataHandler[T, R] {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// DefaultEnvelopeHandler bridges a ContextDataHandler into an
// EnvelopeHandler: it splits the request envelope into (Context, T), calls
// the inner handler, and wraps the result using the metadata
// preserve-for-response rule. On handler error, no response envelope is
// emitted — the error propagates so the binding can translate it into a
// transport-native failure.
type DefaultEnvelopeHandler[T, R any] struct {
	Inner ContextDataHandler[T, R]
}

// NewDefaultEnvelopeHandler builds the default bridge around inner.
func NewDefaultEnvelopeHandler[T, R any](inner ContextDataHandler[T, R]) *DefaultEnvelopeHandler[T, R] {
	return &DefaultEnvelopeHandler[T, R]{Inner: inner}
}

func (b *DefaultEnvelopeHandler[T, R]) Handle(ctx context.Context, req envelope.Envelope[T]) (envelope.Envelope[R], error) {
	var zero envelope.Envelope[R]

	ctxData := metadata.FromMeta(req.Meta)
	result, err := b.Inner.Handle(ctx, ctxData, req.Payload)
	if err != nil {
		return zero, err
	}

	responseMeta := ctxData.ToResponseMeta()
	return envelope.Envelope[R]{Meta: responseMeta, Payload: result}, nil
}

// DefaultContextDataHandler is a transparent passthrough wrapper: it
// delegates to inner unchanged. It exists so that wrapping a handler (e.g.
// for uniform construction in generic code) never alters behavior.
type DefaultContextDataHandler[T, R any] struct {
	Inner ContextDataHandler[T, R]
}

func (d *DefaultContextDataHandler[T, R]) Handle(ctx context.Context, meta *metadata.Context, data T) (R, error) {
	return d.Inner.Handle(ctx, meta, data)
}
