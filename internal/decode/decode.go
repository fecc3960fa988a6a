// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package decode turns identity platform responses into typed values and
// errors.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/authvital/sdk-go/internal/retry"
)

// maxErrorBody is how much of an unstructured error body we keep.
const maxErrorBody = 512

// maxBody bounds how much of any response we are willing to read.
const maxBody = 4 << 20

// JSON decodes a successful response body as a T, or returns an *Error
// for any other status. The body is always consumed and closed.
func JSON[T any](resp *http.Response) (*T, error) {
	out := new(T)
	if err := Into(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Into is the non-generic form of JSON. A nil out discards the body.
func Into(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp, body, time.Now())
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", requestURL(resp), err)
	}
	return nil
}

// ErrorFromResponse reads resp and returns the *Error it describes. It is
// for callers that have already decided the status is unsuccessful.
func ErrorFromResponse(resp *http.Response) *Error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return newError(resp, body, time.Now())
}

// FromRetrieveError translates an error from golang.org/x/oauth2 into an
// *Error when it carries a token endpoint response. Other errors are
// returned unchanged.
func FromRetrieveError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	e := newError(re.Response, re.Body, time.Now())
	if e.Code == "" {
		e.Code = re.ErrorCode
	}
	if e.Description == "" {
		e.Description = re.ErrorDescription
	}
	if e.URI == "" {
		e.URI = re.ErrorURI
	}
	return e
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

type problemBody struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func newError(resp *http.Response, body []byte, now time.Time) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}
	if e.RequestID == "" && resp.Request != nil {
		e.RequestID = resp.Request.Header.Get("X-Request-Id")
	}
	if d, ok := retry.RetryAfter(resp.Header, now); ok {
		e.RetryAfter = d
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return e
	}

	if looksLikeJSON(resp.Header.Get("Content-Type"), trimmed) {
		var oe oauthErrorBody
		if err := json.Unmarshal(trimmed, &oe); err == nil && oe.Error != "" {
			e.Code = oe.Error
			e.Description = oe.ErrorDescription
			e.URI = oe.ErrorURI
			return e
		}
		var pb problemBody
		if err := json.Unmarshal(trimmed, &pb); err == nil && (pb.Title != "" || pb.Detail != "") {
			e.Code = pb.Type
			e.Description = pb.Detail
			if e.Description == "" {
				e.Description = pb.Title
			}
			e.URI = pb.Type
			if e.Code == "about:blank" {
				e.Code = ""
				e.URI = ""
			}
			return e
		}
	}

	e.Body = truncate(string(trimmed), maxErrorBody)
	return e
}

func looksLikeJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || mt == "application/problem+json" || strings.HasSuffix(mt, "+json") {
			return true
		}
	}
	return body[0] == '{'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "identity platform"
	}
	return resp.Request.URL.Redacted()
}
