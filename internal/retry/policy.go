// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package retry decides which requests to the identity platform are worth
// retrying and how long to wait between attempts.
package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultMaxRetries = 3
	DefaultWaitMin    = 500 * time.Millisecond
	DefaultWaitMax    = 30 * time.Second
)

// Policy describes how many times a request may be retried and the bounds
// of the wait between attempts.
type Policy struct {
	MaxRetries int
	WaitMin    time.Duration
	WaitMax    time.Duration

	// Jitter returns a pseudo-random value in [0, n). If nil, math/rand/v2
	// is used.
	Jitter func(n int64) int64

	// Now is used when interpreting a Retry-After header given as an HTTP
	// date. If nil, time.Now is used.
	Now func() time.Time
}

// DefaultPolicy returns the policy used when the caller doesn't select one.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		WaitMin:    DefaultWaitMin,
		WaitMax:    DefaultWaitMax,
	}
}

// Apply installs the policy on the given client.
func (p Policy) Apply(c *retryablehttp.Client) {
	c.RetryMax = p.MaxRetries
	c.RetryWaitMin = p.WaitMin
	c.RetryWaitMax = p.WaitMax
	c.CheckRetry = CheckRetry
	c.Backoff = p.Backoff
	c.ErrorHandler = ErrorHandler
}

// CheckRetry is a retryablehttp.CheckRetry that only retries failures that
// are likely to be transient.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		if isCertError(err) {
			return false, nil
		}
		// The library's default policy already knows which other transport
		// errors are permanent: unsupported schemes, invalid headers and
		// redirect loops.
		return retryablehttp.DefaultRetryPolicy(ctx, nil, err)
	}
	if resp == nil {
		return false, nil
	}
	return retryableStatus(resp.StatusCode), nil
}

func isCertError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var invalidErr x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &hostnameErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Backoff is a retryablehttp.Backoff. It waits as long as the server asks
// via Retry-After on 429 and 503 responses, and otherwise waits a random
// duration between min and min*2^attempt. The result never exceeds max.
func (p Policy) Backoff(min, max time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		if wait, ok := RetryAfter(resp.Header, now()); ok {
			if wait > max {
				return max
			}
			return wait
		}
	}

	if min <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	ceiling := min << uint(attempt)
	if ceiling <= 0 || ceiling > max {
		ceiling = max
	}
	if ceiling <= min {
		return ceiling
	}

	jitter := rand.Int64N
	if p.Jitter != nil {
		jitter = p.Jitter
	}
	return min + time.Duration(jitter(int64(ceiling-min)+1))
}

// ErrorHandler is the retryablehttp.ErrorHandler installed by Apply. It
// reports how many attempts were made and the status of the last one.
var ErrorHandler = NewErrorHandler(nil)

// NewErrorHandler returns a retryablehttp.ErrorHandler that reports how
// many attempts were made. describe turns the last response into the error
// that the result wraps, and must close the response body. If describe is
// nil the error just names the status and the redacted request URL.
func NewErrorHandler(describe func(*http.Response) error) retryablehttp.ErrorHandler {
	return func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		prefix := "request failed"
		if numTries > 1 {
			prefix = fmt.Sprintf("request failed after %d attempts", numTries)
		}

		// We will never have both a response and an error.
		switch {
		case resp != nil && describe != nil:
			return nil, fmt.Errorf("%s: %w", prefix, describe(resp))
		case resp != nil:
			resp.Body.Close()
			return nil, fmt.Errorf("%s: %s returned from %s", prefix, resp.Status, RedactedURL(resp.Request))
		case err != nil:
			return nil, fmt.Errorf("%s: %w", prefix, err)
		default:
			return nil, errors.New(prefix)
		}
	}
}

// RedactedURL returns the request URL without its query string or
// userinfo, either of which may carry secrets such as authorization codes.
func RedactedURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
