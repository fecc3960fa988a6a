// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

// AuthCodeOption adds a parameter to the authorization URL.
type AuthCodeOption = oauth2.AuthCodeOption

// WithNonce adds an OpenID Connect nonce to the authorization request. The
// same value must later be passed to VerifyIDToken.
func WithNonce(nonce string) AuthCodeOption {
	return oauth2.SetAuthURLParam("nonce", nonce)
}

// ClientCredentialsToken returns a service token for the client, from the
// cache when there is one that isn't about to expire.
func (c *Client) ClientCredentialsToken(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ClientCredentialsToken",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.AuthVitalClientID(c.clientID),
			traceattrs.AuthVitalGrantType("client_credentials"),
			traceattrs.StringSlice(traceattrs.Scopes, c.scopes),
		),
	)
	defer span.End()

	key := c.cacheKey()
	if tok, ok := c.tokens.Fresh(key); ok {
		span.SetAttributes(traceattrs.Bool(traceattrs.TokenCacheHit, true))
		return tok, nil
	}
	span.SetAttributes(traceattrs.Bool(traceattrs.TokenCacheHit, false))

	tok, err := c.tokens.Token(ctx, key, c.fetchServiceToken)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	return tok, nil
}

// fetchServiceToken renews the service token, with the refresh grant when
// the previous token carries a refresh token and the client credentials
// grant otherwise or if that fails.
func (c *Client) fetchServiceToken(ctx context.Context, prev *oauth2.Token) (*oauth2.Token, error) {
	if prev != nil && prev.RefreshToken != "" {
		tok, err := c.Refresh(ctx, prev.RefreshToken)
		if err == nil {
			return tok, nil
		}
		c.logger.Debug("refresh grant failed; requesting a new service token", "error", err)
	}
	return c.fetchClientCredentials(ctx)
}

func (c *Client) fetchClientCredentials(ctx context.Context) (*oauth2.Token, error) {
	tracing.RecordStage(ctx, tracing.StageClientCredentials)
	tokenURL, err := c.endpoint(ctx, "token", func(d *Discovery) string { return d.TokenEndpoint })
	if err != nil {
		return nil, err
	}

	cfg := clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     tokenURL,
		Scopes:       c.scopes,
		AuthStyle:    c.authStyle(),
	}
	if c.audience != "" {
		cfg.EndpointParams = url.Values{"audience": {c.audience}}
	}

	tok, err := cfg.Token(c.oauth2Context(ctx))
	if err != nil {
		return nil, decode.FromRetrieveError(err)
	}
	c.logger.Debug("obtained service token", "client_id", c.clientID, "expiry", tok.Expiry)
	return tok, nil
}

// TokenSource returns a source of service tokens backed by the client's
// cache. The given context is used for every token request the source
// makes.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &clientTokenSource{ctx: ctx, client: c}
}

type clientTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *clientTokenSource) Token() (*oauth2.Token, error) {
	return s.client.ClientCredentialsToken(s.ctx)
}

// AuthCodeURL returns the URL to send a user to for login, along with the
// PKCE verifier that must later be given to Exchange. The caller is
// responsible for generating and checking state.
func (c *Client) AuthCodeURL(ctx context.Context, state string, opts ...AuthCodeOption) (string, string, error) {
	cfg, err := c.oauth2Config(ctx)
	if err != nil {
		return "", "", err
	}
	verifier := oauth2.GenerateVerifier()
	opts = append([]AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, opts...)
	if c.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.audience))
	}
	return cfg.AuthCodeURL(state, opts...), verifier, nil
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Exchange",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.AuthVitalClientID(c.clientID),
			traceattrs.AuthVitalGrantType("authorization_code"),
		),
	)
	defer span.End()

	if c.redirectURL == "" {
		err := errors.New("a redirect URL is required for the authorization code flow")
		tracing.SetSpanError(span, err)
		return nil, err
	}
	cfg, err := c.oauth2Config(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	tok, err := cfg.Exchange(c.oauth2Context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		err = decode.FromRetrieveError(err)
		tracing.SetSpanError(span, err)
		return nil, err
	}
	return tok, nil
}

// Refresh uses a refresh token to obtain new tokens. The result carries
// the same refresh token if the platform didn't issue a new one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Refresh",
		tracing.SpanAttributes(
			traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay()),
			traceattrs.AuthVitalClientID(c.clientID),
			traceattrs.AuthVitalGrantType("refresh_token"),
		),
	)
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		tracing.SetSpanError(span, ErrNoRefreshToken)
		return nil, ErrNoRefreshToken
	}
	cfg, err := c.oauth2Config(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	tok, err := cfg.TokenSource(c.oauth2Context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		err = decode.FromRetrieveError(err)
		tracing.SetSpanError(span, err)
		return nil, err
	}
	return tok, nil
}

func (c *Client) oauth2Config(ctx context.Context) (*oauth2.Config, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if doc.AuthorizationEndpoint == "" {
		return nil, fmt.Errorf("authorization: %w", ErrEndpointNotAdvertised)
	}
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   doc.AuthorizationEndpoint,
			TokenURL:  doc.TokenEndpoint,
			AuthStyle: c.authStyle(),
		},
		RedirectURL: c.redirectURL,
		Scopes:      c.scopes,
	}, nil
}

func (c *Client) authStyle() oauth2.AuthStyle {
	if c.authMethod == AuthMethodBasic {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

// oauth2Context makes the oauth2 package send its requests through our
// retrying client.
func (c *Client) oauth2Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http.StandardClient())
}
