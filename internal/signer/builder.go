// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package signer builds the HTTP requests the SDK sends to the identity
// platform, including client authentication and optional body signatures.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	HeaderRequestID   = "X-Request-Id"
	HeaderIdempotency = "Idempotency-Key"

	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// Builder accumulates the parts of a request. Errors are deferred until
// Build so that calls can be chained.
type Builder struct {
	method   string
	rawURL   string
	subPath  string
	query    url.Values
	header   http.Header
	form     url.Values
	jsonBody any
	hasJSON  bool

	bearer     string
	auth       ClientAuth
	idempotent bool
	signer     *HMACSigner
}

// NewRequest starts building a request with the given method against the
// given absolute URL.
func NewRequest(method, rawURL string) *Builder {
	return &Builder{
		method: method,
		rawURL: rawURL,
		query:  url.Values{},
		header: http.Header{},
	}
}

// Path appends a path to the base URL's path.
func (b *Builder) Path(p string) *Builder {
	b.subPath = p
	return b
}

// Query adds a query string parameter.
func (b *Builder) Query(key, value string) *Builder {
	b.query.Add(key, value)
	return b
}

// Header sets a request header, replacing any previous value.
func (b *Builder) Header(key, value string) *Builder {
	b.header.Set(key, value)
	return b
}

// Form adds a field to a form-encoded body.
func (b *Builder) Form(key, value string) *Builder {
	if b.form == nil {
		b.form = url.Values{}
	}
	b.form.Add(key, value)
	return b
}

// JSON sets a body that will be encoded as JSON.
func (b *Builder) JSON(v any) *Builder {
	b.jsonBody = v
	b.hasJSON = true
	return b
}

// Bearer authenticates the request with the given access token.
func (b *Builder) Bearer(token string) *Builder {
	b.bearer = token
	return b
}

// ClientAuth authenticates the request as an OAuth client.
func (b *Builder) ClientAuth(auth ClientAuth) *Builder {
	b.auth = auth
	return b
}

// Idempotent marks the request as safe to repeat by sending an
// Idempotency-Key header equal to the request ID.
func (b *Builder) Idempotent() *Builder {
	b.idempotent = true
	return b
}

// Sign arranges for the request body to be signed by s.
func (b *Builder) Sign(s *HMACSigner) *Builder {
	b.signer = s
	return b
}

// Build returns the finished request, or the first error encountered
// while assembling it.
func (b *Builder) Build(ctx context.Context) (*retryablehttp.Request, error) {
	u, err := url.Parse(b.rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("invalid request URL %q: must be absolute", b.rawURL)
	}
	if b.subPath != "" {
		joined := path.Join("/", u.Path, b.subPath)
		if strings.HasSuffix(b.subPath, "/") && joined != "/" {
			joined += "/"
		}
		u.Path = joined
	}
	if len(b.query) > 0 {
		q := u.Query()
		for k, vs := range b.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if b.hasJSON && b.form != nil {
		return nil, errors.New("request cannot have both a form body and a JSON body")
	}

	header := b.header.Clone()
	var form url.Values
	if b.form != nil {
		form = url.Values{}
		for k, vs := range b.form {
			form[k] = append([]string(nil), vs...)
		}
	}
	if err := b.auth.apply(header, &form); err != nil {
		return nil, err
	}
	if b.bearer != "" && b.auth.Method != AuthMethodNone && b.auth.Method != "" {
		return nil, errors.New("request cannot use both bearer and client authentication")
	}

	var body []byte
	switch {
	case b.hasJSON:
		body, err = json.Marshal(b.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		header.Set("Content-Type", contentTypeJSON)
	case form != nil:
		body = []byte(form.Encode())
		header.Set("Content-Type", contentTypeForm)
	}

	var reqBody any
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, b.method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}

	for k, vs := range header {
		req.Header[k] = vs
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", contentTypeJSON)
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if b.idempotent && req.Header.Get(HeaderIdempotency) == "" {
		req.Header.Set(HeaderIdempotency, req.Header.Get(HeaderRequestID))
	}
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}
	if b.signer != nil {
		b.signer.sign(req.Header, b.method, u.EscapedPath(), body)
	}

	return req, nil
}

// RequestID returns the request ID header of req.
func RequestID(req *http.Request) string {
	return strings.TrimSpace(req.Header.Get(HeaderRequestID))
}
