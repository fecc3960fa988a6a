// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package brand

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNotImplementedMessage(t *testing.T) {
	b, ok := ForPackage("authvital")
	if !ok {
		t.Fatal("no authvital brand")
	}
	want := "authvital: SDK is coming soon! Follow https://github.com/authvital/authvital for updates"
	if got := b.NotImplementedMessage(); got != want {
		t.Errorf("wrong message\ngot:  %s\nwant: %s", got, want)
	}

	if _, ok := ForPackage("authvandal"); ok {
		t.Error("unknown brand was found")
	}
}

// TestRenderedPackagesUpToDate fails when a brand package was edited by
// hand or the template changed without running go generate.
func TestRenderedPackagesUpToDate(t *testing.T) {
	for _, b := range All {
		t.Run(b.Package, func(t *testing.T) {
			want, err := b.Render()
			if err != nil {
				t.Fatal(err)
			}
			got, err := os.ReadFile(filepath.Join("..", "..", b.Package, FileName))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(want) {
				t.Errorf("%s/%s is out of date; run go generate ./internal/brand", b.Package, FileName)
			}
			if !strings.Contains(string(got), b.Repository()) {
				t.Errorf("%s/%s does not mention %s", b.Package, FileName, b.Repository())
			}
		})
	}
}
