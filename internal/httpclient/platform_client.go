// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/retry"
)

// NewForPlatformRequests is a variant of [New] that adds the retry policy
// we apply to every request made to the identity platform, whether it is a
// discovery request, a token request or an authenticated API call.
//
// The timeout argument specifies a deadline for the completion of each
// individual attempt, not for the request as a whole including retries;
// callers that need an overall deadline should put it on the request context.
func NewForPlatformRequests(ctx context.Context, policy retry.Policy, timeout time.Duration, logger hclog.Logger) *retryablehttp.Client {
	// We'll start with the result of New, so that what we return still
	// honors our general policy for HTTP client behavior.
	baseClient := New(ctx)
	baseClient.Timeout = timeout

	return WrapForPlatformRequests(baseClient, policy, logger)
}

// WrapForPlatformRequests applies the same retry policy and logging as
// [NewForPlatformRequests] to a caller-provided client. The given client is
// used as-is for each attempt.
//
// Once retries run out, the returned error wraps the *decode.Error built
// from the last response.
func WrapForPlatformRequests(baseClient *http.Client, policy retry.Policy, logger hclog.Logger) *retryablehttp.Client {
	if logger == nil {
		logger = logging.HCLogger()
	}

	retryableClient := retryablehttp.NewClient()
	retryableClient.HTTPClient = baseClient
	retryableClient.RequestLogHook = platformRequestLogHook
	retryableClient.Logger = logger
	policy.Apply(retryableClient)
	retryableClient.ErrorHandler = retry.NewErrorHandler(func(resp *http.Response) error {
		return decode.ErrorFromResponse(resp)
	})

	return retryableClient
}
