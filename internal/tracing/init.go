// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-logr/stdr"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/version"
)

// OTELExporterEnvVar selects the span exporter. Only "otlp" turns tracing
// on; the exporter itself is then configured by the standard
// OTEL_EXPORTER_OTLP_* variables.
const OTELExporterEnvVar = "OTEL_TRACES_EXPORTER"

// Names of the environment variables a parent process can use to pass its
// W3C trace context to the CLI.
const (
	traceParentEnvVar = "TRACEPARENT"
	traceStateEnvVar  = "TRACESTATE"
)

var isTracingEnabled bool

// OpenTelemetryInit installs a global tracer provider for the CLI when
// OTEL_TRACES_EXPORTER=otlp. Library users configure their own provider
// instead, and the SDK reports to whatever is installed globally.
//
// The returned context carries the parent span described by TRACEPARENT,
// if that is set.
func OpenTelemetryInit(ctx context.Context) (context.Context, error) {
	isTracingEnabled = os.Getenv(OTELExporterEnvVar) == "otlp"
	if !isTracingEnabled {
		// autoexport would otherwise default to an OTLP collector on
		// localhost.
		logging.HCLogger().Trace("OpenTelemetry: exporter is not \"otlp\", tracing disabled", "variable", OTELExporterEnvVar)
		return ctx, nil
	}
	logging.HCLogger().Trace("OpenTelemetry: tracing enabled")

	res, err := cliResource()
	if err != nil {
		return ctx, fmt.Errorf("failed to create resource: %w", err)
	}
	ctx = contextFromEnv(ctx)

	exporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return ctx, err
	}

	otel.SetTracerProvider(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBlocking()),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetLogger(stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logging.HCLogger().Warn("OpenTelemetry error", "error", err)
	}))
	return ctx, nil
}

func cliResource() (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName("AuthVital CLI"),
			semconv.ServiceVersion(version.String()),
			// Set explicitly so the detectors above don't contribute a
			// second, conflicting schema URL.
			semconv.TelemetrySDKName("opentelemetry"),
			semconv.TelemetrySDKLanguageGo,
			semconv.TelemetrySDKVersion(sdk.Version()),
		),
	)
}

// contextFromEnv extracts the trace context passed in TRACEPARENT and
// TRACESTATE.
func contextFromEnv(ctx context.Context) context.Context {
	parent := os.Getenv(traceParentEnvVar)
	if parent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": parent}
	if state := os.Getenv(traceStateEnvVar); state != "" {
		carrier["tracestate"] = state
	}
	logging.HCLogger().Trace("OpenTelemetry: continuing trace from environment", "parent", parent)
	return propagation.TraceContext{}.Extract(ctx, carrier)
}
