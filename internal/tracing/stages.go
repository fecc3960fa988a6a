// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"slices"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// Names of the stages the SDK records with RecordStage.
const (
	StageDiscovery         = "discovery"
	StageClientCredentials = "client_credentials"
)

// StageRecorder lets a test see which stages of the SDK ran with a context
// derived from one the test supplied, and which span context each stage
// saw. Work that runs detached from the caller's cancellation must still
// keep the caller's values, or its spans start a new trace.
type StageRecorder struct {
	mu    sync.Mutex
	seen  map[string]trace.SpanContext
	order []string
}

type stageRecorderKey struct{}

// WithStageRecorder returns a child of base that carries a new recorder.
func WithStageRecorder(t testing.TB, base context.Context) (context.Context, *StageRecorder) {
	t.Helper()
	if base.Value(stageRecorderKey{}) != nil {
		t.Fatal("base context already carries a StageRecorder")
	}
	r := &StageRecorder{seen: make(map[string]trace.SpanContext)}
	return context.WithValue(base, stageRecorderKey{}, r), r
}

// RecordStage notes that stage ran with ctx. It does nothing unless ctx
// carries a StageRecorder.
func RecordStage(ctx context.Context, stage string) {
	r, ok := ctx.Value(stageRecorderKey{}).(*StageRecorder)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[stage]; !dup {
		r.order = append(r.order, stage)
	}
	r.seen[stage] = trace.SpanContextFromContext(ctx)
}

// Stages returns the recorded stages in the order they first ran.
func (r *StageRecorder) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// SpanContext returns the span context stage last ran with.
func (r *StageRecorder) SpanContext(stage string) (trace.SpanContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.seen[stage]
	return sc, ok
}

// ExpectStages reports an error, without stopping the test, for each
// stage that was not recorded.
func (r *StageRecorder) ExpectStages(t testing.TB, stages ...string) bool {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := true
	for _, stage := range stages {
		if _, ok := r.seen[stage]; !ok {
			t.Errorf("stage %q did not run with the recorder's context (recorded: %v)", stage, r.order)
			ret = false
		}
	}
	return ret
}
