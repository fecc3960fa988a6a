// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var errEmptyToken = errors.New("token endpoint returned no access token")

// Key identifies a cached token. Two keys built from the same scopes in a
// different order, or with duplicates, are equal.
type Key struct {
	ClientID string
	Scopes   string
	Audience string
}

func NewKey(clientID string, scopes []string, audience string) Key {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			normalized = append(normalized, s)
		}
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	return Key{
		ClientID: clientID,
		Scopes:   strings.Join(normalized, " "),
		Audience: audience,
	}
}

// String returns a representation of the key that is distinct for
// distinct keys, for logs and for coalescing fetches.
func (k Key) String() string {
	return fmt.Sprintf("%q %q %q", k.ClientID, k.Scopes, k.Audience)
}
