// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package tokencache keeps access tokens until shortly before they expire,
// so that callers can ask for a token on every request without each request
// costing a round trip to the token endpoint.
package tokencache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/authvital/sdk-go/internal/logging"
)

// DefaultRefreshSkew is how long before its expiry a cached token is
// considered stale and refreshed.
const DefaultRefreshSkew = 30 * time.Second

// FetchFunc obtains a new token. prev is the token currently cached for the
// key, if any, so that a refresh token it carries can be used.
type FetchFunc func(ctx context.Context, prev *oauth2.Token) (*oauth2.Token, error)

// Cache is safe for concurrent use. Tokens it returns are shared and must
// not be modified.
type Cache struct {
	skew   time.Duration
	now    func() time.Time
	logger hclog.Logger

	mu      sync.Mutex
	entries map[Key]*oauth2.Token

	flights singleflight.Group
}

type Option func(*Cache)

// WithRefreshSkew sets how long before expiry a token is refreshed.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.skew = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		skew:    DefaultRefreshSkew,
		now:     time.Now,
		logger:  logging.HCLogger().Named("tokencache"),
		entries: make(map[Key]*oauth2.Token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token for key if it is not yet due for refresh,
// and otherwise calls fetch to obtain a new one. Concurrent calls for the
// same key share a single call to fetch.
//
// If fetch fails while the previously cached token has not actually expired
// yet, that token is returned instead of the error.
func (c *Cache) Token(ctx context.Context, key Key, fetch FetchFunc) (*oauth2.Token, error) {
	if tok := c.fresh(key); tok != nil {
		return tok, nil
	}

	// The fetch runs detached from any one caller's cancellation, since
	// other callers may be waiting on the same result. Each caller can
	// still stop waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key.String(), func() (any, error) {
		return c.refresh(fetchCtx, key, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context, key Key, fetch FetchFunc) (*oauth2.Token, error) {
	// Another flight may have finished between our freshness check and
	// this one starting.
	if tok := c.fresh(key); tok != nil {
		return tok, nil
	}

	c.mu.Lock()
	prev := c.entries[key]
	c.mu.Unlock()

	tok, err := fetch(ctx, prev)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errEmptyToken
	}
	if err != nil {
		if c.usable(prev, c.now()) {
			c.logger.Warn("token refresh failed; using the current token until it expires", "key", key.String(), "expiry", prev.Expiry, "error", err)
			return prev, nil
		}
		return nil, err
	}

	if tok.Expiry.IsZero() {
		if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
			tok.Expiry = exp
		}
	}
	if tok.RefreshToken == "" && prev != nil && prev.RefreshToken != "" {
		// Platforms that don't rotate refresh tokens omit them from the
		// refresh response.
		tok.RefreshToken = prev.RefreshToken
	}

	c.mu.Lock()
	c.entries[key] = tok
	c.mu.Unlock()

	c.logger.Debug("cached new token", "key", key.String(), "expiry", tok.Expiry)
	return tok, nil
}

// Fresh returns the cached token for key if it is not yet due for refresh.
func (c *Cache) Fresh(key Key) (*oauth2.Token, bool) {
	tok := c.fresh(key)
	return tok, tok != nil
}

// Peek returns the cached token for key without checking its expiry.
func (c *Cache) Peek(key Key) (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.entries[key]
	return tok, ok
}

// Put stores a token obtained outside the cache, such as from an
// authorization code exchange.
func (c *Cache) Put(key Key, tok *oauth2.Token) {
	if tok == nil {
		return
	}
	if tok.Expiry.IsZero() {
		if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
			tok.Expiry = exp
		}
	}
	c.mu.Lock()
	c.entries[key] = tok
	c.mu.Unlock()
}

// Invalidate drops the token for key, so that the next call to Token
// fetches a new one.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every cached token.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of cached tokens, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) fresh(key Key) *oauth2.Token {
	c.mu.Lock()
	tok := c.entries[key]
	c.mu.Unlock()

	if tok == nil || tok.AccessToken == "" {
		return nil
	}
	if tok.Expiry.IsZero() || c.now().Before(tok.Expiry.Add(-c.skew)) {
		return tok
	}
	return nil
}

func (c *Cache) usable(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || now.Before(tok.Expiry)
}
