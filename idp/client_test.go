// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace"

	"github.com/authvital/sdk-go/internal/idptest"
	"github.com/authvital/sdk-go/internal/tracing"
)

func fastRetries() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		WaitMin:    time.Millisecond,
		WaitMax:    time.Millisecond,
	}
}

func newTestClient(t *testing.T, srv *idptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithHost(srv.URL),
		WithClientID(idptest.ClientID),
		WithClientSecret(idptest.ClientSecret),
		WithRetryPolicy(fastRetries()),
	}
	c, err := New(t.Context(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error creating client: %s", err)
	}
	return c
}

func TestClient_leavesStandardLogAlone(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	t.Setenv("AUTHVITAL_APPEND_USER_AGENT", "billing-service/1.4")

	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)
	if err := c.Do(t.Context(), http.MethodGet, "/api/widgets", nil, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("client wrote to the standard logger:\n%s", buf.String())
	}
}

func TestNew_validation(t *testing.T) {
	tests := map[string]struct {
		opts    []Option
		wantErr []string
	}{
		"valid": {
			opts: []Option{WithHost("id.example.com"), WithClientID("a"), WithClientSecret("b")},
		},
		"public client": {
			opts: []Option{WithHost("https://id.example.com"), WithClientID("a"), WithAuthMethod(AuthMethodNone)},
		},
		"nothing": {
			wantErr: []string{"a platform host is required", "a client ID is required"},
		},
		"bad scheme": {
			opts:    []Option{WithHost("ftp://id.example.com"), WithClientID("a"), WithClientSecret("b")},
			wantErr: []string{"scheme must be http or https"},
		},
		"missing secret": {
			opts:    []Option{WithHost("id.example.com"), WithClientID("a"), WithAuthMethod(AuthMethodPost)},
			wantErr: []string{"a client secret is required with client authentication method client_secret_post"},
		},
		"bad auth method": {
			opts:    []Option{WithHost("id.example.com"), WithClientID("a"), WithAuthMethod("magic")},
			wantErr: []string{"magic"},
		},
		"relative redirect": {
			opts:    []Option{WithHost("id.example.com"), WithClientID("a"), WithClientSecret("b"), WithRedirectURL("/callback")},
			wantErr: []string{`redirect URL "/callback" must be absolute`},
		},
		"negative numbers": {
			opts: []Option{
				WithHost("id.example.com"), WithClientID("a"), WithClientSecret("b"),
				WithRequestTimeout(-1), WithRateLimit(-1, 0),
				WithRetryPolicy(RetryPolicy{MaxRetries: -1}),
			},
			wantErr: []string{
				"request timeout must not be negative",
				"rate limit must not be negative",
				"retry count must not be negative",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := New(t.Context(), test.opts...)
			if len(test.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %s", err)
				}
				if !strings.HasPrefix(c.Host(), "https://") {
					t.Errorf("wrong host %q", c.Host())
				}
				return
			}
			if err == nil {
				t.Fatal("succeeded; want error")
			}
			for _, want := range test.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestNew_hostNormalization(t *testing.T) {
	c, err := New(t.Context(), WithHost("ID.Example.com/"), WithClientID("a"), WithClientSecret("b"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Host(), "https://ID.Example.com"; got != want {
		t.Errorf("wrong host\ngot:  %s\nwant: %s", got, want)
	}
	if got, want := c.Hostname().String(), "id.example.com"; got != want {
		t.Errorf("wrong hostname\ngot:  %s\nwant: %s", got, want)
	}
	if got, want := c.ClientID(), "a"; got != want {
		t.Errorf("wrong client ID %q", got)
	}
}

func TestDiscover(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Discover(t.Context()); err != nil {
				t.Errorf("unexpected error: %s", err)
			}
		}()
	}
	wg.Wait()

	doc, err := c.Discover(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := doc.TokenEndpoint, srv.URL+"/oauth/token"; got != want {
		t.Errorf("wrong token endpoint\ngot:  %s\nwant: %s", got, want)
	}
	if diff := cmp.Diff([]string{"S256"}, doc.CodeChallengeMethodsSupported); diff != "" {
		t.Errorf("wrong code challenge methods\n%s", diff)
	}
	if got := srv.DiscoveryRequests.Load(); got != 1 {
		t.Errorf("made %d discovery requests; want 1", got)
	}

	c.ForgetDiscovery()
	if _, err := c.Discover(t.Context()); err != nil {
		t.Fatal(err)
	}
	if got := srv.DiscoveryRequests.Load(); got != 2 {
		t.Errorf("made %d discovery requests after ForgetDiscovery; want 2", got)
	}
}

func TestDiscover_issuerMismatch(t *testing.T) {
	impostor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"issuer":"https://id.example.com","token_endpoint":"https://id.example.com/oauth/token"}`))
	}))
	t.Cleanup(impostor.Close)

	c, err := New(t.Context(),
		WithHost(impostor.URL),
		WithClientID(idptest.ClientID),
		WithClientSecret(idptest.ClientSecret),
		WithRetryPolicy(fastRetries()),
	)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Discover(t.Context())
	if err == nil || !strings.Contains(err.Error(), "names a different issuer") {
		t.Fatalf("wrong error: %v", err)
	}
}

func TestEndpointNotAdvertised(t *testing.T) {
	srv := idptest.NewServer(t)
	srv.DisableEndpoint("introspection")
	srv.DisableEndpoint("revocation")
	srv.DisableEndpoint("userinfo")
	c := newTestClient(t, srv)

	if _, err := c.Introspect(t.Context(), "x"); !errors.Is(err, ErrEndpointNotAdvertised) {
		t.Errorf("Introspect: wrong error %v", err)
	}
	if err := c.Revoke(t.Context(), "x", HintNone); !errors.Is(err, ErrEndpointNotAdvertised) {
		t.Errorf("Revoke: wrong error %v", err)
	}
	if _, err := c.UserInfo(t.Context(), "x"); !errors.Is(err, ErrEndpointNotAdvertised) {
		t.Errorf("UserInfo: wrong error %v", err)
	}
}

func TestContextPropagation(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)

	// Discovery and token fetches run detached from the caller's
	// cancellation, but must keep its values so that their spans join the
	// caller's trace.
	caller := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa, 0xb},
		SpanID:     trace.SpanID{0xc},
		TraceFlags: trace.FlagsSampled,
	})
	ctx, rec := tracing.WithStageRecorder(t, trace.ContextWithSpanContext(t.Context(), caller))
	if _, err := c.ClientCredentialsToken(ctx); err != nil {
		t.Fatal(err)
	}
	if !rec.ExpectStages(t, tracing.StageDiscovery, tracing.StageClientCredentials) {
		return
	}
	for _, stage := range rec.Stages() {
		sc, _ := rec.SpanContext(stage)
		if sc.TraceID() != caller.TraceID() {
			t.Errorf("%s ran in trace %s; want the caller's trace %s", stage, sc.TraceID(), caller.TraceID())
		}
	}
}
