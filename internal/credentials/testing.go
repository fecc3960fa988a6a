// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"net/http"
	"strings"
	"testing"

	"github.com/opentofu/svchost/svcauth"
)

// The symbols in this file are intended for use in tests only.

// BearerToken returns the token that creds would send in an Authorization
// header using the Bearer scheme, failing the test if it would send
// anything else.
func BearerToken(t testing.TB, creds svcauth.HostCredentials) string {
	t.Helper()

	fakeReq, err := http.NewRequest("GET", "http://example.com/", nil)
	if err != nil {
		t.Fatalf("failed to create fake request: %s", err)
	}
	creds.PrepareRequest(fakeReq)

	authz := fakeReq.Header.Values("Authorization")
	if len(authz) != 1 {
		t.Fatalf("credentials added %d Authorization header fields; want exactly one", len(authz))
	}

	raw, ok := strings.CutPrefix(authz[0], "Bearer ")
	if !ok {
		t.Fatalf("credentials added an Authorization header that does not use the Bearer scheme: %q", authz[0])
	}
	return strings.TrimSpace(raw)
}
