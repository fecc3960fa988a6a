// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/opentofu/svchost"
	"github.com/opentofu/svchost/svcauth"
	"golang.org/x/sync/singleflight"

	"github.com/authvital/sdk-go/internal/httpclient"
	"github.com/authvital/sdk-go/internal/idtoken"
	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tokencache"
)

// Client talks to one identity platform as one OAuth client.
type Client struct {
	host         string
	hostname     svchost.Hostname
	clientID     string
	clientSecret string
	scopes       []string
	audience     string
	redirectURL  string
	authMethod   AuthMethod

	http   *retryablehttp.Client
	logger hclog.Logger
	clock  func() time.Time
	tokens *TokenCache
	creds  svcauth.CredentialsSource
	signer *HMACSigner

	discoveryMu     sync.Mutex
	discovery       *Discovery
	discoveryFlight singleflight.Group
	verifier        *idtoken.Verifier
}

// New returns a client for the platform and OAuth client described by the
// options. It does not contact the platform; discovery happens on first
// use.
//
// The context is used only to decide whether outgoing requests are traced.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	host, hostname, err := o.validate()
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = logging.HCLogger().Named("idp")
	}

	var httpClient *retryablehttp.Client
	if o.httpClient != nil {
		base := httpclient.WithRateLimit(o.httpClient, o.rateLimit, o.rateBurst)
		httpClient = httpclient.WrapForPlatformRequests(base, o.retryPolicy, logger)
	} else {
		httpClient = httpclient.NewForPlatformRequests(ctx, o.retryPolicy, o.requestTimeout, logger)
		httpClient.HTTPClient = httpclient.WithRateLimit(httpClient.HTTPClient, o.rateLimit, o.rateBurst)
	}

	tokens := o.tokens
	if tokens == nil {
		cacheOpts := []tokencache.Option{tokencache.WithLogger(logger.Named("tokencache"))}
		if o.clock != nil {
			cacheOpts = append(cacheOpts, tokencache.WithClock(o.clock))
		}
		tokens = tokencache.New(cacheOpts...)
	}

	return &Client{
		host:         host,
		hostname:     hostname,
		clientID:     o.clientID,
		clientSecret: o.clientSecret,
		scopes:       o.scopes,
		audience:     o.audience,
		redirectURL:  o.redirectURL,
		authMethod:   o.authMethod,
		http:         httpClient,
		logger:       logger,
		clock:        o.clock,
		tokens:       tokens,
		creds:        o.creds,
		signer:       o.signer,
	}, nil
}

func (o *options) validate() (string, svchost.Hostname, error) {
	var result *multierror.Error
	var host string
	var hostname svchost.Hostname

	if o.host == "" {
		result = multierror.Append(result, errors.New("a platform host is required"))
	} else {
		host = strings.TrimSuffix(o.host, "/")
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		u, err := url.Parse(host)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("invalid platform host %q: %w", o.host, err))
		case u.Scheme != "https" && u.Scheme != "http":
			result = multierror.Append(result, fmt.Errorf("invalid platform host %q: scheme must be http or https", o.host))
		case u.Host == "":
			result = multierror.Append(result, fmt.Errorf("invalid platform host %q: no hostname", o.host))
		default:
			hostname, err = svchost.ForComparison(u.Host)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("invalid platform host %q: %w", o.host, err))
			}
		}
	}

	if o.clientID == "" {
		result = multierror.Append(result, errors.New("a client ID is required"))
	}
	if m, err := signer.ParseAuthMethod(string(o.authMethod)); err != nil {
		result = multierror.Append(result, err)
	} else {
		o.authMethod = m
		if m != AuthMethodNone && o.clientSecret == "" {
			result = multierror.Append(result, fmt.Errorf("a client secret is required with client authentication method %s", m))
		}
	}
	if o.redirectURL != "" {
		if u, err := url.Parse(o.redirectURL); err != nil || !u.IsAbs() {
			result = multierror.Append(result, fmt.Errorf("redirect URL %q must be absolute", o.redirectURL))
		}
	}
	if o.requestTimeout < 0 {
		result = multierror.Append(result, errors.New("request timeout must not be negative"))
	}
	if o.rateLimit < 0 {
		result = multierror.Append(result, errors.New("rate limit must not be negative"))
	}
	if o.retryPolicy.MaxRetries < 0 {
		result = multierror.Append(result, errors.New("retry count must not be negative"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return "", "", fmt.Errorf("invalid identity platform client configuration: %w", err)
	}
	return host, hostname, nil
}

// Host returns the platform base URL.
func (c *Client) Host() string {
	return c.host
}

// Hostname returns the platform hostname in the form used to look up
// stored credentials.
func (c *Client) Hostname() svchost.Hostname {
	return c.hostname
}

// ClientID returns the OAuth client ID.
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) clientAuth() signer.ClientAuth {
	return signer.ClientAuth{
		Method:       c.authMethod,
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	}
}

func (c *Client) cacheKey() tokencache.Key {
	return tokencache.NewKey(c.clientID, c.scopes, c.audience)
}
