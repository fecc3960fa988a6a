// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"net/http"
	"os"
	"strings"

	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/retry"
)

const (
	// DefaultApplicationName is the product token the SDK identifies itself
	// with.
	DefaultApplicationName = "AuthVital-Go-SDK"

	customUaEnvVar = "AUTHVITAL_USER_AGENT"
	appendUaEnvVar = "AUTHVITAL_APPEND_USER_AGENT"
)

// userAgentRoundTripper fills in User-Agent on requests that don't set one.
type userAgentRoundTripper struct {
	inner     http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", rt.userAgent)
	}
	logging.HCLogger().Trace("HTTP client request", "method", req.Method, "url", retry.RedactedURL(req))
	return rt.inner.RoundTrip(req)
}

// UserAgent returns the User-Agent header value for the given SDK version.
// AUTHVITAL_USER_AGENT replaces it, and AUTHVITAL_APPEND_USER_AGENT adds a
// suffix to whichever of the two is in effect, so that applications
// embedding the SDK can identify themselves to the platform.
func UserAgent(version string) string {
	parts := []string{DefaultApplicationName + "/" + version}
	if custom := strings.TrimSpace(os.Getenv(customUaEnvVar)); custom != "" {
		parts[0] = custom
	}
	if suffix := strings.TrimSpace(os.Getenv(appendUaEnvVar)); suffix != "" {
		parts = append(parts, suffix)
	}

	ua := strings.Join(parts, " ")
	if len(parts) > 1 || parts[0] != DefaultApplicationName+"/"+version {
		logging.HCLogger().Debug("using custom User-Agent", "user_agent", ua)
	}
	return ua
}
