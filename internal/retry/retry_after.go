// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryAfter interprets the Retry-After header, which may be either a
// number of seconds or an HTTP date. A date in the past yields zero.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
