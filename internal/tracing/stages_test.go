// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace"
)

func TestStageRecorder(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx, rec := WithStageRecorder(t, trace.ContextWithSpanContext(t.Context(), sc))

	RecordStage(ctx, StageDiscovery)
	RecordStage(context.WithoutCancel(ctx), StageClientCredentials)
	RecordStage(ctx, StageDiscovery)
	RecordStage(t.Context(), "unrelated")

	want := []string{StageDiscovery, StageClientCredentials}
	if diff := cmp.Diff(want, rec.Stages()); diff != "" {
		t.Errorf("wrong stages\n%s", diff)
	}
	got, ok := rec.SpanContext(StageClientCredentials)
	if !ok {
		t.Fatal("no span context for client_credentials")
	}
	if got.TraceID() != sc.TraceID() {
		t.Errorf("wrong trace ID %s; want %s", got.TraceID(), sc.TraceID())
	}
	if _, ok := rec.SpanContext("unrelated"); ok {
		t.Error("stage recorded from a context without the recorder")
	}
	rec.ExpectStages(t, StageDiscovery, StageClientCredentials)
}
