// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package version

import (
	"runtime/debug"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestString(t *testing.T) {
	defer func(v, p string) {
		Version, Prerelease = v, p
	}(Version, Prerelease)

	Version = "1.2.3"
	Prerelease = ""
	if got, want := String(), "1.2.3"; got != want {
		t.Errorf("wrong version string %q; want %q", got, want)
	}

	Prerelease = "rc1"
	if got, want := String(), "1.2.3-rc1"; got != want {
		t.Errorf("wrong version string %q; want %q", got, want)
	}
}

func TestSemVer(t *testing.T) {
	if SemVer == nil {
		t.Fatal("SemVer not initialized")
	}
	if got, want := SemVer.String(), String(); got != want {
		t.Errorf("SemVer is %q; want %q", got, want)
	}
}

func TestPickDependencies(t *testing.T) {
	deps := []*debug.Module{
		{Path: "github.com/hashicorp/go-retryablehttp", Version: "v0.7.8"},
		{Path: "example.com/unrelated", Version: "v1.0.0"},
		{
			Path:    "golang.org/x/oauth2",
			Version: "v0.34.0",
			Replace: &debug.Module{Path: "example.com/fork/oauth2", Version: "v0.34.1"},
		},
	}

	got := pickDependencies(deps, interestingDependencies)
	want := []*debug.Module{
		{Path: "example.com/fork/oauth2", Version: "v0.34.1"},
		{Path: "github.com/hashicorp/go-retryablehttp", Version: "v0.7.8"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong result\n%s", diff)
	}
}
