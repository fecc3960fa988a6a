// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/retry"
)

func TestNew_userAgent(t *testing.T) {
	t.Setenv(customUaEnvVar, "")
	t.Setenv(appendUaEnvVar, "")

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	resp, err := New(t.Context()).Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(gotUA, DefaultApplicationName+"/") {
		t.Errorf("wrong User-Agent %q", gotUA)
	}
}

func TestNewForPlatformRequests_retries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	policy := retry.Policy{MaxRetries: 3, WaitMin: time.Millisecond, WaitMax: 5 * time.Millisecond}
	client := NewForPlatformRequests(context.Background(), policy, 5*time.Second, nil)

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got, want := resp.StatusCode, http.StatusOK; got != want {
		t.Errorf("wrong status %d; want %d", got, want)
	}
	if got, want := calls.Load(), int32(3); got != want {
		t.Errorf("server saw %d calls; want %d", got, want)
	}
}

func TestNewForPlatformRequests_exhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	policy := retry.Policy{MaxRetries: 1, WaitMin: time.Millisecond, WaitMax: time.Millisecond}
	client := NewForPlatformRequests(context.Background(), policy, 5*time.Second, nil)

	_, err := client.Get(server.URL)
	if err == nil {
		t.Fatal("request succeeded; want error")
	}
	if got, want := err.Error(), "request failed after 2 attempts"; !strings.Contains(got, want) {
		t.Errorf("error %q does not contain %q", got, want)
	}
	var platformErr *decode.Error
	if !errors.As(err, &platformErr) {
		t.Fatalf("error %q does not carry the platform response", err)
	}
	if got, want := platformErr.StatusCode, http.StatusBadGateway; got != want {
		t.Errorf("wrong status %d; want %d", got, want)
	}
}

type countingLimiter struct {
	calls int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls++
	return ctx.Err()
}

func TestRateLimitedRoundTripper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	limiter := &countingLimiter{}
	cli := &http.Client{Transport: &rateLimitedRoundTripper{limiter: limiter, inner: http.DefaultTransport}}
	for i := 0; i < 3; i++ {
		resp, err := cli.Get(server.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	if got, want := limiter.calls, 3; got != want {
		t.Errorf("limiter consulted %d times; want %d", got, want)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if _, err := cli.Do(req); err == nil {
		t.Error("request with cancelled context succeeded; want error")
	}
}

func TestWithRateLimit_disabled(t *testing.T) {
	cli := &http.Client{}
	if got := WithRateLimit(cli, 0, 10); got.Transport != nil {
		t.Errorf("transport was wrapped even though rate limiting is disabled")
	}
}

func TestWithRateLimit_copies(t *testing.T) {
	cli := &http.Client{Timeout: time.Second}
	limited := WithRateLimit(cli, 5, 1)
	if limited == cli {
		t.Fatal("client was modified in place")
	}
	if cli.Transport != nil {
		t.Error("original client's transport was replaced")
	}
	if _, ok := limited.Transport.(*rateLimitedRoundTripper); !ok {
		t.Errorf("wrong transport type %T", limited.Transport)
	}
	if limited.Timeout != time.Second {
		t.Errorf("timeout was not preserved")
	}
}
