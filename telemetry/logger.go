// Package telemetry bootstraps the observability stack: a zap logger, plus
// an OpenTelemetry TracerProvider and an OpenTelemetry MeterProvider, both
// exported via OTLP/gRPC.
package telemetry

import "go.uber.org/zap"

// NewLogger builds the service's structured logger. Development builds
// get human-readable console output; anything else gets zap's JSON
// production config.
func NewLogger(environment string) (*zap.Logger, error) {
	if environment == "development" || environment == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
