package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/qollective/qollective-go/handler"
	"github.com/qollective/qollective-go/metadata"
	"github.com/qollective/qollective-go/rest"
	"github.com/qollective/qollective-go/tenant"
)

type widgetRequest struct {
	Name string `json:"name"`
}
type widgetResponse struct {
	Created bool `json:"created"`
}

func echoWidgetHandler() handler.ContextDataHandler[widgetRequest, widgetResponse] {
	return handler.ContextDataHandlerFunc[widgetRequest, widgetResponse](
		func(ctx context.Context, meta *metadata.Context, data widgetRequest) (widgetResponse, error) {
			return widgetResponse{Created: data.Name != ""}, nil
		},
	)
}

func failingWidgetHandler() handler.ContextDataHandler[widgetRequest, widgetResponse] {
	return handler.ContextDataHandlerFunc[widgetRequest, widgetResponse](
		func(ctx context.Context, meta *metadata.Context, data widgetRequest) (widgetResponse, error) {
			return widgetResponse{}, qerrors.New(qerrors.KindInternal, "widget store unavailable")
		},
	)
}

func TestRestBindingRoundTripsEnvelopeOverHTTP(t *testing.T) {
	e := echo.New()
	binding := rest.NewBinding(echoWidgetHandler(), tenant.New(tenant.DefaultExtractionConfig()), nil)
	e.POST("/widgets", binding.EchoHandler())

	req := httptest.NewRequest(http.MethodPost, "/widgets", strings.NewReader(`{"name":"sprocket"}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	req.Header.Set("X-Tenant-Id", "acme")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":true`)
	assert.Contains(t, rec.Body.String(), `"tenant":"acme"`)
	assert.Equal(t, "acme", rec.Header().Get("X-Tenant-Id"),
		"response meta marshals back onto the wire headers")
}

func TestRestBindingRejectsOverlongURIPath(t *testing.T) {
	e := echo.New()
	binding := rest.NewBinding(echoWidgetHandler(), nil, nil)
	e.GET("/widgets/:id", binding.EchoHandler())

	longID := strings.Repeat("a", rest.MaxURIPathLength)
	req := httptest.NewRequest(http.MethodGet, "/widgets/"+longID, nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestURITooLong, rec.Code)
}

func TestRestBindingAcceptsURIPathAtBoundary(t *testing.T) {
	e := echo.New()
	binding := rest.NewBinding(echoWidgetHandler(), nil, nil)
	e.GET("/w/:id", binding.EchoHandler())

	padding := rest.MaxURIPathLength - len("/w/")
	req := httptest.NewRequest(http.MethodGet, "/w/"+strings.Repeat("a", padding), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
