// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package traceattrs contains the attribute names and helpers used on the
// SDK's trace spans.
//
// This package must not import any other package from this module, so that
// every other package can use it without creating import cycles.
package traceattrs

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	PlatformHost  = "authvital.platform.host"
	ClientID      = "authvital.client.id"
	GrantType     = "authvital.oauth.grant_type"
	Scopes        = "authvital.oauth.scopes"
	TokenCacheHit = "authvital.token_cache.hit"
	Endpoint      = "authvital.endpoint"
)

// String wraps [attribute.String] just so that we can keep most of our direct
// OpenTelemetry package imports centralized in this package.
func String(name string, val string) attribute.KeyValue {
	return attribute.String(name, val)
}

// StringSlice wraps [attribute.StringSlice].
func StringSlice(name string, val []string) attribute.KeyValue {
	return attribute.StringSlice(name, val)
}

// Bool wraps [attribute.Bool].
func Bool(name string, val bool) attribute.KeyValue {
	return attribute.Bool(name, val)
}

// AuthVitalPlatformHost returns an attribute definition naming the identity
// platform host a span talks to.
func AuthVitalPlatformHost(host string) attribute.KeyValue {
	return attribute.String(PlatformHost, host)
}

// AuthVitalClientID returns an attribute definition naming the OAuth client
// on whose behalf a span is acting.
func AuthVitalClientID(clientID string) attribute.KeyValue {
	return attribute.String(ClientID, clientID)
}

// AuthVitalGrantType returns an attribute definition naming the OAuth grant
// type used for a token request.
func AuthVitalGrantType(grantType string) attribute.KeyValue {
	return attribute.String(GrantType, grantType)
}
