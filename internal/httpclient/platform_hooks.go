// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/authvital/sdk-go/internal/retry"
)

func platformRequestLogHook(logger retryablehttp.Logger, req *http.Request, i int) {
	if i > 0 && logger != nil {
		logger.Printf("[INFO] Failed request to %s; retrying", retry.RedactedURL(req))
	}
}
