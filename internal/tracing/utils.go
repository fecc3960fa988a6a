// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/authvital/sdk-go/internal/logging"
)

// Span is [trace.Span], re-exported so that other packages only import
// OpenTelemetry through this one.
type Span = trace.Span

// Tracer returns a tracer named after the package of its caller, so that
// spans from the identity client, the token cache and the CLI can be told
// apart in a collector.
func Tracer() trace.Tracer {
	if !isTracingEnabled {
		return otel.Tracer("")
	}
	pc, _, _, ok := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	if !ok || fn == nil {
		return otel.Tracer("")
	}
	return otel.GetTracerProvider().Tracer(packagePath(fn.Name()))
}

// SetSpanError marks span as failed. input is either an error or a message;
// a nil error or empty message leaves the span alone.
func SetSpanError(span trace.Span, input any) {
	if span == nil || input == nil {
		return
	}

	var err error
	switch v := input.(type) {
	case error:
		err = v
	case string:
		if v != "" {
			err = errors.New(v)
		}
	default:
		err = fmt.Errorf("unsupported value of type %T passed to SetSpanError", input)
	}
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

// ForceFlush blocks until buffered spans have been exported or timeout
// passes. Short-lived processes must call it before exiting.
func ForceFlush(timeout time.Duration) {
	if !isTracingEnabled {
		return
	}
	provider, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		logging.HCLogger().Trace("OpenTelemetry: global tracer provider can't be flushed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := provider.ForceFlush(ctx); err != nil {
		logging.HCLogger().Warn("OpenTelemetry: failed to flush spans", "error", err)
	}
}

// SpanFromContext returns the span carried by ctx. The result is never nil;
// check IsRecording to learn whether there is a real span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SpanAttributes is [trace.WithAttributes].
func SpanAttributes(attrs ...attribute.KeyValue) trace.SpanStartEventOption {
	return trace.WithAttributes(attrs...)
}

// packagePath returns the import path part of a qualified function name as
// reported by the runtime, such as
//
//	github.com/authvital/sdk-go/idp.(*Client).Discover
//	main.main
func packagePath(funcName string) string {
	// Dots in the import path can only appear before the last slash.
	start := strings.LastIndex(funcName, "/") + 1
	dot := strings.Index(funcName[start:], ".")
	if dot <= 0 {
		logging.HCLogger().Warn("OpenTelemetry: can't find package path", "function", funcName)
		return "unknown"
	}
	return funcName[:start+dot]
}
