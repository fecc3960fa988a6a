// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package idtoken verifies OpenID Connect ID tokens against the signing
// keys the identity platform publishes.
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	"github.com/authvital/sdk-go/internal/decode"
)

// DefaultLeeway is the clock skew tolerated when checking time claims.
const DefaultLeeway = time.Minute

var (
	ErrUnknownKey    = errors.New("ID token is signed with an unknown key")
	ErrNonceMismatch = errors.New("ID token nonce does not match")
)

var supportedAlgorithms = []jose.SignatureAlgorithm{jose.RS256, jose.ES256}

// Claims are the ID token claims the SDK understands. Other claims are
// available through Verifier.VerifyInto.
type Claims struct {
	jwt.Claims
	Nonce         string `json:"nonce,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

// Verifier checks ID tokens for a single issuer and client. The key set is
// fetched on first use and fetched again, at most once per token, when a
// token names a key that isn't in the cached set.
type Verifier struct {
	issuer   string
	clientID string
	jwksURL  string
	client   *retryablehttp.Client
	leeway   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	keys    *jose.JSONWebKeySet
	fetches singleflight.Group
}

func NewVerifier(issuer, clientID, jwksURL string, client *retryablehttp.Client) *Verifier {
	return &Verifier{
		issuer:   issuer,
		clientID: clientID,
		jwksURL:  jwksURL,
		client:   client,
		leeway:   DefaultLeeway,
		now:      time.Now,
	}
}

// WithClock returns the verifier after replacing its time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks raw and returns its claims. If nonce is not empty the
// token's nonce claim must equal it.
func (v *Verifier) Verify(ctx context.Context, raw, nonce string) (*Claims, error) {
	var claims Claims
	if err := v.VerifyInto(ctx, raw, &claims); err != nil {
		return nil, err
	}
	if nonce != "" && claims.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	return &claims, nil
}

// VerifyInto checks raw and decodes its claims into out, which must embed
// or otherwise decode the registered jwt.Claims. The registered claims are
// always checked regardless of out's type.
func (v *Verifier) VerifyInto(ctx context.Context, raw string, out any) error {
	tok, err := jwt.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return fmt.Errorf("invalid ID token: %w", err)
	}
	if len(tok.Headers) == 0 {
		return errors.New("invalid ID token: no signature header")
	}
	kid := tok.Headers[0].KeyID

	key, err := v.key(ctx, kid)
	if err != nil {
		return err
	}

	var registered jwt.Claims
	if err := tok.Claims(key.Key, &registered, out); err != nil {
		return fmt.Errorf("ID token signature is invalid: %w", err)
	}

	expected := jwt.Expected{
		Issuer:      v.issuer,
		AnyAudience: jwt.Audience{v.clientID},
		Time:        v.now(),
	}
	if err := registered.ValidateWithLeeway(expected, v.leeway); err != nil {
		return fmt.Errorf("ID token is not valid: %w", err)
	}
	if registered.Expiry == nil {
		return errors.New("ID token is not valid: no expiry")
	}
	return nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	v.mu.Lock()
	keys := v.keys
	v.mu.Unlock()

	if keys != nil {
		if k := lookup(keys, kid); k != nil {
			return k, nil
		}
	}

	// Either we have no key set yet or the platform has rotated its keys
	// since we fetched it.
	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	if k := lookup(keys, kid); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKey, kid)
}

func lookup(keys *jose.JSONWebKeySet, kid string) *jose.JSONWebKey {
	if kid == "" {
		// Without a key ID we can only proceed if there's no ambiguity.
		var found *jose.JSONWebKey
		for i := range keys.Keys {
			if keys.Keys[i].Use == "" || keys.Keys[i].Use == "sig" {
				if found != nil {
					return nil
				}
				found = &keys.Keys[i]
			}
		}
		return found
	}
	matches := keys.Key(kid)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func (v *Verifier) fetchKeys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	res, err, _ := v.fetches.Do(v.jwksURL, func() (any, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching signing keys: %w", err)
		}
		keys, err := decode.JSON[jose.JSONWebKeySet](resp)
		if err != nil {
			return nil, fmt.Errorf("fetching signing keys: %w", err)
		}

		v.mu.Lock()
		v.keys = keys
		v.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*jose.JSONWebKeySet), nil
}
