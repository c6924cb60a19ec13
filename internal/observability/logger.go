// Package observability builds the logger, tracer provider and metrics of the server.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogLevelDebug = "debug"

	loggerBuildErrorMessage = "build logger"
)

// NewLogger returns a production JSON logger, or a colorized console logger at debug level.
func NewLogger(level string) (*zap.Logger, error) {
	configuration := zap.NewProductionConfig()
	configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	normalizedLevel := strings.ToLower(strings.TrimSpace(level))
	switch normalizedLevel {
	case "", "info":
	case LogLevelDebug:
		configuration.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		configuration.Encoding = "console"
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		parsedLevel, parseErr := zapcore.ParseLevel(normalizedLevel)
		if parseErr != nil {
			return nil, fmt.Errorf("%s: %w", loggerBuildErrorMessage, parseErr)
		}
		configuration.Level = zap.NewAtomicLevelAt(parsedLevel)
	}

	logger, buildErr := configuration.Build()
	if buildErr != nil {
		return nil, fmt.Errorf("%s: %w", loggerBuildErrorMessage, buildErr)
	}
	return logger, nil
}

// InstallTracerProvider registers a global tracer provider and the W3C trace
// context propagator. The returned provider must be shut down on exit.
func InstallTracerProvider(options ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	tracerProvider := sdktrace.NewTracerProvider(options...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tracerProvider
}
