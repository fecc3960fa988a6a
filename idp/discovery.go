// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

const discoveryPath = "/.well-known/openid-configuration"

// Discovery is the subset of the OpenID Connect discovery document the SDK
// uses.
type Discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri"`

	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// Discover returns the platform's discovery document. It is fetched once
// and then reused until ForgetDiscovery is called; concurrent first calls
// share a single request.
func (c *Client) Discover(ctx context.Context) (*Discovery, error) {
	c.discoveryMu.Lock()
	doc := c.discovery
	c.discoveryMu.Unlock()
	if doc != nil {
		return doc, nil
	}

	ch := c.discoveryFlight.DoChan("discovery", func() (any, error) {
		return c.fetchDiscovery(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Discovery), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ForgetDiscovery discards the cached discovery document and signing keys,
// so that the next operation fetches them again.
func (c *Client) ForgetDiscovery() {
	c.discoveryMu.Lock()
	c.discovery = nil
	c.verifier = nil
	c.discoveryMu.Unlock()
}

func (c *Client) fetchDiscovery(ctx context.Context) (*Discovery, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Discover",
		tracing.SpanAttributes(traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay())),
	)
	defer span.End()
	tracing.RecordStage(ctx, tracing.StageDiscovery)

	req, err := signer.NewRequest(http.MethodGet, c.host).Path(discoveryPath).Build(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	c.logger.Debug("fetching OpenID Connect discovery document", "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to discover %s: %w", c.hostname.ForDisplay(), err)
	}
	doc, err := decode.JSON[Discovery](resp)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to discover %s: %w", c.hostname.ForDisplay(), err)
	}

	if err := c.checkDiscovery(doc); err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}

	c.discoveryMu.Lock()
	c.discovery = doc
	c.discoveryMu.Unlock()
	return doc, nil
}

func (c *Client) checkDiscovery(doc *Discovery) error {
	// OpenID Connect Discovery requires the issuer to be exactly the URL
	// the document was fetched from, which stops one platform from
	// impersonating another.
	if strings.TrimSuffix(doc.Issuer, "/") != c.host {
		return fmt.Errorf("discovery document for %s names a different issuer %q", c.host, doc.Issuer)
	}
	if doc.TokenEndpoint == "" {
		return fmt.Errorf("discovery document for %s has no token endpoint", c.host)
	}
	return nil
}

// endpoint returns the named endpoint URL from the discovery document, or
// an error wrapping ErrEndpointNotAdvertised.
func (c *Client) endpoint(ctx context.Context, name string, pick func(*Discovery) string) (string, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return "", err
	}
	u := pick(doc)
	if u == "" {
		return "", fmt.Errorf("%s: %w", name, ErrEndpointNotAdvertised)
	}
	return u, nil
}
