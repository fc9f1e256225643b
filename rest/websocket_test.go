package rest_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qollective/qollective-go/envelope"
	"github.com/qollective/qollective-go/rest"
)

func TestWSBindingEnvelopePerMessageFraming(t *testing.T) {
	e := echo.New()
	binding := rest.NewWSBinding(echoWidgetHandler(), nil, nil)
	e.GET("/mcp", binding.EchoHandler())

	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/mcp"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	req := envelope.New(envelope.Meta{
		RequestID: "R1",
		Tenant:    envelope.StringField("acme"),
	}, widgetRequest{Name: "sprocket"})
	require.NoError(t, wsjson.Write(ctx, conn, req))

	var resp envelope.Envelope[widgetResponse]
	require.NoError(t, wsjson.Read(ctx, conn, &resp))

	assert.Equal(t, "R1", resp.Meta.RequestID)
	assert.Equal(t, "acme", resp.Meta.TenantOrEmpty())
	assert.True(t, resp.Payload.Created)
	assert.Nil(t, resp.Error)
}

func TestWSBindingWritesErrorEnvelopeOnHandlerFailure(t *testing.T) {
	e := echo.New()
	failing := failingWidgetHandler()
	binding := rest.NewWSBinding(failing, nil, nil)
	e.GET("/mcp", binding.EchoHandler())

	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/mcp"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	req := envelope.New(envelope.Meta{RequestID: "R2"}, widgetRequest{Name: "x"})
	require.NoError(t, wsjson.Write(ctx, conn, req))

	var resp envelope.Envelope[widgetResponse]
	require.NoError(t, wsjson.Read(ctx, conn, &resp))

	require.NotNil(t, resp.Error)
	assert.Equal(t, "R2", resp.Meta.RequestID)
	assert.Equal(t, "handler_error", resp.Error.Code)
}
