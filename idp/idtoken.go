// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/authvital/sdk-go/internal/idtoken"
)

// IDTokenClaims are the claims of a verified ID token.
type IDTokenClaims = idtoken.Claims

// ErrNonceMismatch is returned by VerifyIDToken when the token's nonce is
// not the one the caller expected.
var ErrNonceMismatch = idtoken.ErrNonceMismatch

// VerifyIDToken checks the signature, issuer, audience and time claims of
// an ID token. If nonce is not empty the token must carry the same nonce.
func (c *Client) VerifyIDToken(ctx context.Context, raw, nonce string) (*IDTokenClaims, error) {
	v, err := c.idTokenVerifier(ctx)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, raw, nonce)
}

func (c *Client) idTokenVerifier(ctx context.Context) (*idtoken.Verifier, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("jwks: %w", ErrEndpointNotAdvertised)
	}

	c.discoveryMu.Lock()
	defer c.discoveryMu.Unlock()
	if c.verifier == nil {
		c.verifier = idtoken.NewVerifier(doc.Issuer, c.clientID, doc.JWKSURI, c.http).WithClock(c.now)
	}
	return c.verifier, nil
}

func (c *Client) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}
