// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

// Introspection is the platform's view of a token, as defined by RFC 7662.
// Only Active is meaningful when the token is not active.
type Introspection struct {
	Active    bool         `json:"active"`
	Scope     string       `json:"scope,omitempty"`
	ClientID  string       `json:"client_id,omitempty"`
	Username  string       `json:"username,omitempty"`
	TokenType string       `json:"token_type,omitempty"`
	Exp       int64        `json:"exp,omitempty"`
	Iat       int64        `json:"iat,omitempty"`
	Nbf       int64        `json:"nbf,omitempty"`
	Sub       string       `json:"sub,omitempty"`
	Aud       jwt.Audience `json:"aud,omitempty"`
	Iss       string       `json:"iss,omitempty"`
	Jti       string       `json:"jti,omitempty"`
}

// ExpiresAt returns the token's expiry, or the zero time if the platform
// didn't say.
func (i *Introspection) ExpiresAt() time.Time {
	if i.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(i.Exp, 0)
}

func (i *Introspection) Scopes() []string {
	return strings.Fields(i.Scope)
}

// Introspect asks the platform about token. An inactive token is not an
// error; check the Active field.
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Introspect",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.AuthVitalClientID(c.clientID),
		),
	)
	defer span.End()

	endpoint, err := c.endpoint(ctx, "introspection", func(d *Discovery) string { return d.IntrospectionEndpoint })
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}

	req, err := signer.NewRequest(http.MethodPost, endpoint).
		Form("token", token).
		Form("token_type_hint", "access_token").
		ClientAuth(c.clientAuth()).
		Build(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to introspect token: %w", err)
	}
	ret, err := decode.JSON[Introspection](resp)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(traceattrs.Bool("authvital.token.active", ret.Active))
	return ret, nil
}

// ValidateSession introspects token and returns ErrSessionInactive unless
// the platform says it is active and its time claims hold now.
func (c *Client) ValidateSession(ctx context.Context, token string) (*Introspection, error) {
	info, err := c.Introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	now := c.now()
	switch {
	case !info.Active:
		return nil, ErrSessionInactive
	case info.Exp != 0 && !now.Before(info.ExpiresAt()):
		return nil, fmt.Errorf("%w: expired at %s", ErrSessionInactive, info.ExpiresAt().UTC().Format(time.RFC3339))
	case info.Nbf != 0 && now.Before(time.Unix(info.Nbf, 0)):
		return nil, fmt.Errorf("%w: not valid before %s", ErrSessionInactive, time.Unix(info.Nbf, 0).UTC().Format(time.RFC3339))
	}
	return info, nil
}
