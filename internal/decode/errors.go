// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package decode

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a platform error by what the caller can do about it.
type Kind int

const (
	KindOther Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	default:
		return "other"
	}
}

// Error is a non-successful response from the identity platform.
type Error struct {
	StatusCode  int
	Code        string // OAuth "error", or the problem "type"
	Description string
	URI         string
	RequestID   string
	RetryAfter  time.Duration
	Body        string // raw body, truncated, when it was not structured
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("identity platform returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	switch {
	case e.Code != "" && e.Description != "":
		msg += fmt.Sprintf(": %s: %s", e.Code, e.Description)
	case e.Code != "":
		msg += ": " + e.Code
	case e.Description != "":
		msg += ": " + e.Description
	case e.Body != "":
		msg += ": " + e.Body
	}
	if e.RequestID != "" {
		msg += fmt.Sprintf(" (request %s)", e.RequestID)
	}
	return msg
}

// Kind returns the classification of the error.
func (e *Error) Kind() Kind {
	switch e.Code {
	case "invalid_token", "invalid_client":
		return KindUnauthorized
	case "insufficient_scope", "access_denied", "unauthorized_client":
		return KindForbidden
	case "slow_down", "temporarily_unavailable":
		if e.StatusCode < 500 {
			return KindRateLimited
		}
	}
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return KindUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return KindForbidden
	case e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone:
		return KindNotFound
	case e.StatusCode == http.StatusConflict:
		return KindConflict
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case e.StatusCode >= 500:
		return KindServerError
	case e.StatusCode >= 400:
		return KindInvalidRequest
	default:
		return KindOther
	}
}

// Temporary reports whether repeating the request later might succeed.
func (e *Error) Temporary() bool {
	switch e.Kind() {
	case KindRateLimited:
		return true
	case KindServerError:
		return e.StatusCode != http.StatusNotImplemented
	default:
		return false
	}
}

func IsUnauthorized(err error) bool { return isKind(err, KindUnauthorized) }

func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

func IsRateLimited(err error) bool { return isKind(err, KindRateLimited) }

func isKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind() == k
}
