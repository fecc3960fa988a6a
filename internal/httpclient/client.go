// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"context"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/version"
)

// New returns the DefaultPooledClient from the cleanhttp package that will
// also send an AuthVital SDK User-Agent string.
//
// If the given context has an active OpenTelemetry trace span associated with
// it then the returned client is also configured to collect traces for
// outgoing requests. Those traces will be children of the span associated
// with the context passed in each individual request, rather than of the span
// in the context passed to this function; this function only checks for the
// presence of a recording span as a heuristic for whether the caller has
// tracing plumbing in place.
func New(ctx context.Context) *http.Client {
	cli := cleanhttp.DefaultPooledClient()
	cli.Transport = &userAgentRoundTripper{
		userAgent: UserAgent(version.String()),
		inner:     cli.Transport,
	}

	if span := tracing.SpanFromContext(ctx); span != nil && span.IsRecording() {
		// Requests made with this client then generate spans following the
		// standard semantic conventions for outgoing HTTP requests, and carry
		// W3C trace context headers so the platform can join the trace.
		//
		// We only do this when there seems to be an active span because
		// otherwise each request would begin a separate trace containing only
		// that request, which is noise for whoever consumes the traces.
		cli.Transport = otelhttp.NewTransport(cli.Transport)
	}

	return cli
}

// WithRateLimit returns a copy of the given client whose requests wait for
// a token from a limiter allowing perSecond requests per second with the
// given burst. A non-positive perSecond returns the client unchanged.
func WithRateLimit(cli *http.Client, perSecond float64, burst int) *http.Client {
	if perSecond <= 0 {
		return cli
	}
	if burst <= 0 {
		burst = 1
	}
	inner := cli.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}
	ret := *cli
	ret.Transport = &rateLimitedRoundTripper{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		inner:   inner,
	}
	return &ret
}

type requestLimiter interface {
	Wait(ctx context.Context) error
}

type rateLimitedRoundTripper struct {
	limiter requestLimiter
	inner   http.RoundTripper
}

func (rt *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.limiter != nil {
		if err := rt.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return rt.inner.RoundTrip(req)
}
