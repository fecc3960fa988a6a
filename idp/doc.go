// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package idp is a client for an OpenID Connect identity platform.
//
// A [Client] discovers the platform's endpoints from its
// /.well-known/openid-configuration document and then offers:
//
//   - service tokens through the client credentials grant, cached until
//     shortly before they expire;
//   - user login through the authorization code grant with PKCE, and
//     refresh of the resulting tokens;
//   - token introspection and session validation;
//   - token revocation;
//   - the userinfo endpoint;
//   - ID token verification against the platform's published keys;
//   - authenticated calls to the platform's own API.
//
// Every method is safe for concurrent use, and every method that talks to
// the platform takes a context.
package idp
