// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/opentofu/svchost/svcauth"

	"github.com/authvital/sdk-go/internal/retry"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tokencache"
)

// DefaultRequestTimeout bounds each individual attempt of a request.
const DefaultRequestTimeout = 10 * time.Second

// AuthMethod selects how the client authenticates to the token,
// introspection and revocation endpoints.
type AuthMethod = signer.AuthMethod

const (
	AuthMethodBasic = signer.AuthMethodBasic
	AuthMethodPost  = signer.AuthMethodPost
	AuthMethodNone  = signer.AuthMethodNone
)

// RetryPolicy controls retries of failed requests.
type RetryPolicy = retry.Policy

// DefaultRetryPolicy returns the policy used unless WithRetryPolicy is given.
func DefaultRetryPolicy() RetryPolicy {
	return retry.DefaultPolicy()
}

// TokenCache holds service tokens. A cache can be shared between clients.
type TokenCache = tokencache.Cache

// NewTokenCache returns a cache that refreshes tokens refreshSkew before
// they expire. A zero refreshSkew uses the default of 30 seconds.
func NewTokenCache(refreshSkew time.Duration) *TokenCache {
	if refreshSkew == 0 {
		return tokencache.New()
	}
	return tokencache.New(tokencache.WithRefreshSkew(refreshSkew))
}

// HMACSigner signs request bodies sent to the platform API.
type HMACSigner = signer.HMACSigner

// NewHMACSigner returns a signer using the given shared secret.
func NewHMACSigner(secret []byte) *HMACSigner {
	return signer.NewHMACSigner(secret)
}

// Option configures a [Client].
type Option func(*options)

type options struct {
	host         string
	clientID     string
	clientSecret string
	scopes       []string
	audience     string
	redirectURL  string
	authMethod   AuthMethod

	httpClient     *http.Client
	retryPolicy    RetryPolicy
	requestTimeout time.Duration
	rateLimit      float64
	rateBurst      int

	logger hclog.Logger
	clock  func() time.Time
	tokens *TokenCache
	creds  svcauth.CredentialsSource
	signer *HMACSigner
}

func defaultOptions() options {
	return options{
		authMethod:     AuthMethodBasic,
		retryPolicy:    DefaultRetryPolicy(),
		requestTimeout: DefaultRequestTimeout,
	}
}

// WithHost sets the base URL of the identity platform, such as
// https://id.example.com. A bare hostname is taken to mean HTTPS.
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

func WithClientID(id string) Option {
	return func(o *options) {
		o.clientID = id
	}
}

func WithClientSecret(secret string) Option {
	return func(o *options) {
		o.clientSecret = secret
	}
}

// WithScopes sets the scopes requested for service tokens and user login.
func WithScopes(scopes ...string) Option {
	return func(o *options) {
		o.scopes = append([]string(nil), scopes...)
	}
}

// WithAudience sets the audience parameter sent with token requests, for
// platforms that issue tokens for a specific API.
func WithAudience(audience string) Option {
	return func(o *options) {
		o.audience = audience
	}
}

// WithRedirectURL sets the redirect URL registered for the authorization
// code flow.
func WithRedirectURL(u string) Option {
	return func(o *options) {
		o.redirectURL = u
	}
}

func WithAuthMethod(m AuthMethod) Option {
	return func(o *options) {
		o.authMethod = m
	}
}

// WithHTTPClient sets the client used for each request attempt, instead of
// the SDK's default pooled client. Retries are still applied on top of it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retryPolicy = p
	}
}

// WithRequestTimeout bounds each attempt of a request. It has no effect
// together with WithHTTPClient.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithRateLimit limits the client to perSecond requests per second, with
// bursts of up to burst requests.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = perSecond
		o.rateBurst = burst
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces the time source used to check the time claims of ID
// tokens and introspection results.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithTokenCache shares a token cache between clients.
func WithTokenCache(c *TokenCache) Option {
	return func(o *options) {
		o.tokens = c
	}
}

// WithCredentialsSource makes [Client.Do] authenticate with credentials
// stored for the platform host, such as those saved by "authvital login",
// when there are any, instead of a service token.
func WithCredentialsSource(src svcauth.CredentialsSource) Option {
	return func(o *options) {
		o.creds = src
	}
}

// WithSigner signs the requests made by [Client.Do].
func WithSigner(s *HMACSigner) Option {
	return func(o *options) {
		o.signer = s
	}
}
