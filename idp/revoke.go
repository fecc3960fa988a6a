// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

// TokenTypeHint tells the revocation endpoint what kind of token it is
// being given.
type TokenTypeHint string

const (
	HintNone         TokenTypeHint = ""
	HintAccessToken  TokenTypeHint = "access_token"
	HintRefreshToken TokenTypeHint = "refresh_token"
)

// Revoke asks the platform to revoke token. Revoking a token the platform
// doesn't know is not an error. If token is the client's cached service
// token it is also dropped from the cache.
func (c *Client) Revoke(ctx context.Context, token string, hint TokenTypeHint) error {
	ctx, span := tracing.Tracer().Start(ctx, "Revoke",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.AuthVitalClientID(c.clientID),
		),
	)
	defer span.End()

	endpoint, err := c.endpoint(ctx, "revocation", func(d *Discovery) string { return d.RevocationEndpoint })
	if err != nil {
		tracing.SetSpanError(span, err)
		return err
	}

	b := signer.NewRequest(http.MethodPost, endpoint).
		Form("token", token).
		ClientAuth(c.clientAuth())
	if hint != HintNone {
		b = b.Form("token_type_hint", string(hint))
	}
	req, err := b.Build(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		tracing.SetSpanError(span, err)
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if err := decode.Into(resp, nil); err != nil {
		tracing.SetSpanError(span, err)
		return err
	}

	key := c.cacheKey()
	if cached, ok := c.tokens.Peek(key); ok && cached.AccessToken == token {
		c.tokens.Invalidate(key)
	}
	return nil
}
