// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package brand

const packageSource = `// Code generated by brandgen. DO NOT EDIT.

// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package {{.Package}} is the {{.Name}} Go SDK.
//
// The SDK is not available yet: [New] always fails with [ErrNotImplemented]
// and [MustNew] always panics with it. The identity platform client that it
// will be built on is available in package idp.
package {{.Package}}

import (
	"errors"

	"github.com/authvital/sdk-go/idp"
	"github.com/authvital/sdk-go/internal/errorhandling"
	"github.com/authvital/sdk-go/version"
)

// Version is the version of the {{.Name}} Go SDK.
var Version = version.String()

// ErrNotImplemented is returned by every attempt to create a [Client].
var ErrNotImplemented = errors.New("{{.NotImplementedMessage}}")

// Client is reserved for the {{.Name}} client. No usable value exists yet.
type Client struct{}

// Option configures a [Client].
type Option = idp.Option

// WithHost sets the {{.Name}} host to connect to.
func WithHost(host string) Option {
	return idp.WithHost(host)
}

// WithClientID sets the OAuth client ID.
func WithClientID(id string) Option {
	return idp.WithClientID(id)
}

// WithClientSecret sets the OAuth client secret.
func WithClientSecret(secret string) Option {
	return idp.WithClientSecret(secret)
}

// New always returns [ErrNotImplemented], whatever options are given.
func New(opts ...Option) (*Client, error) {
	return nil, ErrNotImplemented
}

// MustNew is like [New] but panics instead of returning an error. Since New
// cannot succeed yet, MustNew never returns.
func MustNew(opts ...Option) *Client {
	return errorhandling.Must2(New(opts...))
}
`
