// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"github.com/authvital/sdk-go/internal/idptest"
)

func TestClientCredentialsToken(t *testing.T) {
	for _, method := range []AuthMethod{AuthMethodBasic, AuthMethodPost} {
		t.Run(string(method), func(t *testing.T) {
			srv := idptest.NewServer(t)
			c := newTestClient(t, srv, WithAuthMethod(method), WithScopes("write", "read"))

			var wg sync.WaitGroup
			tokens := make([]string, 5)
			for i := range tokens {
				wg.Add(1)
				go func() {
					defer wg.Done()
					tok, err := c.ClientCredentialsToken(t.Context())
					if err != nil {
						t.Errorf("unexpected error: %s", err)
						return
					}
					tokens[i] = tok.AccessToken
				}()
			}
			wg.Wait()

			for _, tok := range tokens[1:] {
				if tok != tokens[0] {
					t.Errorf("callers got different tokens: %q", tokens)
					break
				}
			}
			if got := srv.TokenRequests.Load(); got != 1 {
				t.Errorf("made %d token requests; want 1", got)
			}

			info, err := c.Introspect(t.Context(), tokens[0])
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"read", "write"}, info.Scopes()); diff != "" {
				t.Errorf("wrong scopes\n%s", diff)
			}
		})
	}
}

func TestClientCredentialsToken_errors(t *testing.T) {
	t.Run("bad secret", func(t *testing.T) {
		srv := idptest.NewServer(t)
		c := newTestClient(t, srv, WithClientSecret("wrong"))
		_, err := c.ClientCredentialsToken(t.Context())
		if !IsUnauthorized(err) {
			t.Fatalf("wrong error: %v", err)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("error is %T, not *Error", err)
		}
		if got, want := apiErr.Code, "invalid_client"; got != want {
			t.Errorf("wrong code %q; want %q", got, want)
		}
	})
	t.Run("platform unavailable", func(t *testing.T) {
		srv := idptest.NewServer(t)
		srv.FailTokenRequests.Store(true)
		c := newTestClient(t, srv)
		_, err := c.ClientCredentialsToken(t.Context())
		if err == nil || !strings.Contains(err.Error(), "request failed after 2 attempts") {
			t.Fatalf("wrong error: %v", err)
		}
		if got := srv.TokenRequests.Load(); got != 2 {
			t.Errorf("made %d token requests; want 2", got)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("error %q does not carry the platform response", err)
		}
		if got, want := apiErr.StatusCode, http.StatusServiceUnavailable; got != want {
			t.Errorf("wrong status %d; want %d", got, want)
		}
		if !apiErr.Temporary() {
			t.Errorf("503 is not reported as temporary")
		}
	})
}

func TestClientCredentialsToken_callerGivesUp(t *testing.T) {
	srv := idptest.NewServer(t)
	srv.TokenDelay.Store(int64(200 * time.Millisecond))
	c := newTestClient(t, srv)
	if _, err := c.Discover(t.Context()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ClientCredentialsToken(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wrong error: %v", err)
	}

	// The abandoned fetch still completes, and later callers share it.
	tok, err := c.ClientCredentialsToken(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken == "" {
		t.Error("got an empty token")
	}
	if got := srv.TokenRequests.Load(); got != 1 {
		t.Errorf("made %d token requests; want 1", got)
	}
}

func TestClientCredentialsToken_refreshGrant(t *testing.T) {
	t.Run("cached refresh token", func(t *testing.T) {
		srv := idptest.NewServer(t)
		cache := NewTokenCache(0)
		c := newTestClient(t, srv, WithTokenCache(cache))
		refresh := srv.IssueRefreshToken(idptest.ClientID, idptest.ServiceSub, nil)
		cache.Put(c.cacheKey(), &oauth2.Token{
			AccessToken:  "expired",
			RefreshToken: refresh,
			Expiry:       time.Now().Add(-time.Minute),
		})

		tok, err := c.ClientCredentialsToken(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if tok.AccessToken == "expired" {
			t.Fatal("expired token was served")
		}
		if tok.RefreshToken != refresh {
			t.Errorf("refresh token %q was not kept; got %q", refresh, tok.RefreshToken)
		}
		if got := srv.RefreshGrants.Load(); got != 1 {
			t.Errorf("made %d refresh grants; want 1", got)
		}
		if got := srv.TokenRequests.Load(); got != 1 {
			t.Errorf("made %d token requests; want 1", got)
		}
	})
	t.Run("rejected refresh token", func(t *testing.T) {
		srv := idptest.NewServer(t)
		cache := NewTokenCache(0)
		c := newTestClient(t, srv, WithTokenCache(cache))
		cache.Put(c.cacheKey(), &oauth2.Token{
			AccessToken:  "expired",
			RefreshToken: "rt-unknown",
			Expiry:       time.Now().Add(-time.Minute),
		})

		tok, err := c.ClientCredentialsToken(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if tok.AccessToken == "expired" {
			t.Fatal("expired token was served")
		}
		if got := srv.RefreshGrants.Load(); got != 1 {
			t.Errorf("made %d refresh grants; want 1", got)
		}
		if got := srv.TokenRequests.Load(); got != 2 {
			t.Errorf("made %d token requests; want 2", got)
		}
	})
}

func TestTokenSource(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)
	src := c.TokenSource(t.Context())

	first, err := src.Token()
	if err != nil {
		t.Fatal(err)
	}
	second, err := src.Token()
	if err != nil {
		t.Fatal(err)
	}
	if first.AccessToken != second.AccessToken {
		t.Errorf("token source did not reuse the cached token")
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv,
		WithRedirectURL("http://127.0.0.1/callback"),
		WithScopes("openid", "email"),
	)

	authURL, verifier, err := c.AuthCodeURL(t.Context(), "state-1", WithNonce("nonce-1"))
	if err != nil {
		t.Fatal(err)
	}
	if verifier == "" {
		t.Fatal("no PKCE verifier")
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if got, want := q.Get("code_challenge_method"), "S256"; got != want {
		t.Errorf("wrong code_challenge_method %q", got)
	}
	if q.Get("code_challenge") == verifier {
		t.Error("authorization URL contains the verifier itself")
	}

	code, state := followAuthorize(t, authURL)
	if state != "state-1" {
		t.Errorf("wrong state %q", state)
	}

	if _, err := c.Exchange(t.Context(), code, "wrong-verifier"); err == nil {
		t.Error("exchange with the wrong verifier succeeded")
	}

	// The failed exchange consumed the code, so log in again.
	authURL, verifier, err = c.AuthCodeURL(t.Context(), "state-2", WithNonce("nonce-2"))
	if err != nil {
		t.Fatal(err)
	}
	code, _ = followAuthorize(t, authURL)
	tok, err := c.Exchange(t.Context(), code, verifier)
	if err != nil {
		t.Fatalf("exchange failed: %s", err)
	}
	if tok.RefreshToken == "" {
		t.Fatal("no refresh token")
	}

	rawID, _ := tok.Extra("id_token").(string)
	claims, err := c.VerifyIDToken(t.Context(), rawID, "nonce-2")
	if err != nil {
		t.Fatalf("ID token verification failed: %s", err)
	}
	if got, want := claims.Subject, idptest.Subject; got != want {
		t.Errorf("wrong subject %q; want %q", got, want)
	}
	if got, want := claims.Email, "ada@example.com"; got != want {
		t.Errorf("wrong email %q; want %q", got, want)
	}
	if _, err := c.VerifyIDToken(t.Context(), rawID, "nonce-1"); !errors.Is(err, ErrNonceMismatch) {
		t.Errorf("wrong error for mismatched nonce: %v", err)
	}

	refreshed, err := c.Refresh(t.Context(), tok.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %s", err)
	}
	if refreshed.AccessToken == tok.AccessToken {
		t.Error("refresh returned the old access token")
	}
	if got, want := refreshed.RefreshToken, tok.RefreshToken; got != want {
		t.Errorf("refresh token not carried forward\ngot:  %s\nwant: %s", got, want)
	}
}

func TestAuthorizationCodeFlow_publicClient(t *testing.T) {
	srv := idptest.NewServer(t)
	c, err := New(t.Context(),
		WithHost(srv.URL),
		WithClientID(idptest.PublicClient),
		WithAuthMethod(AuthMethodNone),
		WithRedirectURL("http://127.0.0.1/callback"),
		WithRetryPolicy(fastRetries()),
	)
	if err != nil {
		t.Fatal(err)
	}
	authURL, verifier, err := c.AuthCodeURL(t.Context(), "s")
	if err != nil {
		t.Fatal(err)
	}
	code, _ := followAuthorize(t, authURL)
	if _, err := c.Exchange(t.Context(), code, verifier); err != nil {
		t.Fatalf("exchange failed: %s", err)
	}
}

func TestExchange_requiresRedirectURL(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)
	_, err := c.Exchange(t.Context(), "code", "verifier")
	if err == nil || !strings.Contains(err.Error(), "redirect URL is required") {
		t.Fatalf("wrong error: %v", err)
	}
}

func TestRefresh_noRefreshToken(t *testing.T) {
	srv := idptest.NewServer(t)
	c := newTestClient(t, srv)
	if _, err := c.Refresh(t.Context(), " "); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("wrong error: %v", err)
	}
}

// followAuthorize visits an authorization URL as a browser would and
// returns the code and state from the redirect.
func followAuthorize(t *testing.T, authURL string) (string, string) {
	t.Helper()
	browser := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := browser.Get(authURL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize returned %s", resp.Status)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	return loc.Query().Get("code"), loc.Query().Get("state")
}
