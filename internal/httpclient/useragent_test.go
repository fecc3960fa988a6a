// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"testing"
)

func TestUserAgent(t *testing.T) {
	base := DefaultApplicationName + "/0.0.0"

	tests := map[string]struct {
		custom string
		append string
		want   string
	}{
		"default":               {want: base},
		"blank append":          {append: " \n", want: base},
		"append":                {append: "billing-service/1.4", want: base + " billing-service/1.4"},
		"append with comment":   {append: "billing-service/1.4 (staging)", want: base + " billing-service/1.4 (staging)"},
		"custom":                {custom: "acme-gateway", want: "acme-gateway"},
		"blank custom":          {custom: "  ", want: base},
		"custom and append":     {custom: "acme-gateway", append: "build/42", want: "acme-gateway build/42"},
		"whitespace is trimmed": {custom: " acme-gateway ", append: " build/42 ", want: "acme-gateway build/42"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(customUaEnvVar, test.custom)
			t.Setenv(appendUaEnvVar, test.append)
			if got := UserAgent("0.0.0"); got != test.want {
				t.Errorf("wrong User-Agent\ngot:  %s\nwant: %s", got, test.want)
			}
		})
	}
}
