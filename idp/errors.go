// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"errors"

	"github.com/authvital/sdk-go/internal/decode"
)

var (
	// ErrSessionInactive is returned by ValidateSession for tokens the
	// platform no longer accepts.
	ErrSessionInactive = errors.New("session is not active")

	// ErrNoRefreshToken is returned by Refresh when there is no refresh
	// token to use.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrEndpointNotAdvertised is returned when the discovery document
	// doesn't list an endpoint an operation needs.
	ErrEndpointNotAdvertised = errors.New("endpoint not advertised by the identity platform")
)

// Error is an unsuccessful response from the platform.
type Error = decode.Error

// ErrorKind classifies an [Error].
type ErrorKind = decode.Kind

// IsUnauthorized reports whether err is an [Error] caused by missing or
// invalid credentials.
func IsUnauthorized(err error) bool {
	return decode.IsUnauthorized(err)
}

// IsNotFound reports whether err is an [Error] for a resource that doesn't
// exist.
func IsNotFound(err error) bool {
	return decode.IsNotFound(err)
}

// IsRateLimited reports whether err is an [Error] asking the client to slow
// down.
func IsRateLimited(err error) bool {
	return decode.IsRateLimited(err)
}
