// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"github.com/opentofu/svchost/svcauth"
)

// HostCredentialsFromMap converts a map of key-value pairs read from the
// credentials file or a helper program into a HostCredentials object, or
// returns nil if no credentials could be extracted from the map.
//
// Unknown keys are ignored so that newer writers can add fields.
func HostCredentialsFromMap(m map[string]any) svcauth.HostCredentials {
	if m == nil {
		return nil
	}
	if token, ok := m["token"].(string); ok && token != "" {
		return svcauth.HostCredentialsToken(token)
	}
	return nil
}

// HostCredentialsWithToken is a variant of [svcauth.HostCredentials] that
// also offers direct access to a stored bearer token. The stores in this
// package return [svcauth.HostCredentialsToken], which implements it.
type HostCredentialsWithToken interface {
	svcauth.HostCredentials
	Token() string
}

// TokenFromHostCredentials returns the bearer token carried by creds, and
// false if creds doesn't expose one.
func TokenFromHostCredentials(creds svcauth.HostCredentials) (string, bool) {
	withToken, ok := creds.(HostCredentialsWithToken)
	if !ok || withToken.Token() == "" {
		return "", false
	}
	return withToken.Token(), true
}
