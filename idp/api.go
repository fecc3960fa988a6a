// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

// Do calls the platform API at path, relative to the platform host. path
// may carry a query string. A non-nil body is sent as JSON and a non-nil out receives the JSON
// response.
//
// The request is authenticated with credentials stored for the platform
// host if a credentials source was configured and holds any, and with the
// client's service token otherwise. If the platform rejects a service
// token, Do fetches a new one and tries once more.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := tracing.Tracer().Start(ctx, "Do",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.String(traceattrs.Endpoint, method+" "+path),
		),
	)
	defer span.End()

	err := c.do(ctx, method, path, body, out)
	if err != nil {
		tracing.SetSpanError(span, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.creds != nil {
		creds, err := c.creds.ForHost(ctx, c.hostname)
		if err != nil {
			return fmt.Errorf("failed to read stored credentials for %s: %w", c.hostname.ForDisplay(), err)
		}
		if creds != nil {
			resp, err := c.send(ctx, method, path, body, func(req *http.Request) {
				creds.PrepareRequest(req)
			})
			if err != nil {
				return err
			}
			return decode.Into(resp, out)
		}
	}

	for attempt := 0; ; attempt++ {
		tok, err := c.ClientCredentialsToken(ctx)
		if err != nil {
			return err
		}
		resp, err := c.send(ctx, method, path, body, func(req *http.Request) {
			tok.SetAuthHeader(req)
		})
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debug("service token rejected; fetching a new one", "path", path)
			resp.Body.Close()
			c.tokens.Invalidate(c.cacheKey())
			continue
		}
		return decode.Into(resp, out)
	}
}

func (c *Client) send(ctx context.Context, method, path string, body any, authorize func(*http.Request)) (*http.Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid API path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, fmt.Errorf("invalid API path %q: must be relative to the platform host", path)
	}
	b := signer.NewRequest(method, c.host).Path(ref.Path).Sign(c.signer)
	for k, vs := range ref.Query() {
		for _, v := range vs {
			b = b.Query(k, v)
		}
	}
	if body != nil {
		b = b.JSON(body)
	}
	if method == http.MethodPost || method == http.MethodPatch {
		b = b.Idempotent()
	}
	req, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	authorize(req.Request)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}
