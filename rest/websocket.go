package rest

import (
	"context"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/tenant"
)

// WSBinding mounts a ContextDataHandler at a WebSocket endpoint
// (typically /mcp) with envelope-per-message framing: each inbound frame
// is decoded as a request envelope, dispatched through the handler
// pipeline, and its response envelope written back as the next outbound
// frame. Each frame is handled on its own goroutine, so replies are written
// in completion order, not arrival order; each response envelope carries
// its request's requestId, which is what a client matches replies on. The
// binding keeps no per-connection table of in-flight requests.
type WSBinding[T, R any] struct {
	Handler   handler.ContextDataHandler[T, R]
	Extractor *tenant.Extractor
	Log       *zap.Logger
}

func NewWSBinding[T, R any](h handler.ContextDataHandler[T, R], extractor *tenant.Extractor, log *zap.Logger) *WSBinding[T, R] {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSBinding[T, R]{Handler: h, Extractor: extractor, Log: log}
}

// EchoHandler upgrades the connection and serves frames until the client
// disconnects or the request context is canceled.
func (b *WSBinding[T, R]) EchoHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.CloseNow()

		ctx := c.Request().Context()
		var wg sync.WaitGroup

		for {
			var req envelope.Envelope[T]
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				break
			}

			wg.Add(1)
			go func(req envelope.Envelope[T]) {
				defer wg.Done()
				b.handleOne(ctx, conn, req)
			}(req)
		}

		wg.Wait()
		return conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (b *WSBinding[T, R]) handleOne(ctx context.Context, conn *websocket.Conn, req envelope.Envelope[T]) {
	if b.Extractor != nil {
		payloadMap, _ := payloadToMap(req.Payload)
		info, err := b.Extractor.Extract(nil, payloadMap, nil)
		if err != nil {
			b.Log.Warn("tenant extraction failed", zap.Error(err))
		} else if info != nil {
			tenant.Apply(info, &req.Meta)
		}
	}

	ctxData := metadata.FromMeta(req.Meta)
	result, err := b.Handler.Handle(ctx, ctxData, req.Payload)
	if err != nil {
		errResp := envelope.NewError[R](ctxData.ToResponseMeta(), "handler_error", err.Error())
		_ = wsjson.Write(ctx, conn, errResp)
		return
	}

	resp := envelope.Envelope[R]{Meta: ctxData.ToResponseMeta(), Payload: result}
	_ = wsjson.Write(ctx, conn, resp)
}
