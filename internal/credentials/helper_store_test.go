// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/opentofu/svchost"
	"github.com/opentofu/svchost/svcauth"
)

func TestHelperStore(t *testing.T) {
	// The helper script is a bash script run directly through its #! line.
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("this test only works on Unix-like systems")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	program := filepath.Join(wd, "testdata", "helperprog", "test-helper")

	src, err := NewHelperStore(program)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("happy path", func(t *testing.T) {
		creds, err := src.ForHost(t.Context(), svchost.Hostname("id.example.com"))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := BearerToken(t, creds), "example-token"; got != want {
			t.Errorf("wrong token %q; want %q", got, want)
		}
	})
	t.Run("no credentials", func(t *testing.T) {
		creds, err := src.ForHost(t.Context(), svchost.Hostname("nothing.example.com"))
		if err != nil {
			t.Fatal(err)
		}
		if creds != nil {
			t.Errorf("got credentials; want nil")
		}
	})
	t.Run("unsupported credentials type", func(t *testing.T) {
		creds, err := src.ForHost(t.Context(), svchost.Hostname("other-cred-type.example.com"))
		if err != nil {
			t.Fatal(err)
		}
		if creds != nil {
			t.Errorf("got credentials; want nil")
		}
	})
	t.Run("lookup error", func(t *testing.T) {
		if _, err := src.ForHost(t.Context(), svchost.Hostname("fail.example.com")); err == nil {
			t.Error("completed successfully; want error")
		}
	})
	t.Run("store happy path", func(t *testing.T) {
		err := src.StoreForHost(t.Context(), svchost.Hostname("id.example.com"), svcauth.HostCredentialsToken("example-token"))
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("store error", func(t *testing.T) {
		err := src.StoreForHost(t.Context(), svchost.Hostname("fail.example.com"), svcauth.HostCredentialsToken("example-token"))
		if err == nil {
			t.Error("completed successfully; want error")
		}
	})
	t.Run("forget happy path", func(t *testing.T) {
		if err := src.ForgetForHost(t.Context(), svchost.Hostname("id.example.com")); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("forget error", func(t *testing.T) {
		if err := src.ForgetForHost(t.Context(), svchost.Hostname("fail.example.com")); err == nil {
			t.Error("completed successfully; want error")
		}
	})
}

func TestNewHelperStore_relativePath(t *testing.T) {
	if _, err := NewHelperStore("bin/helper"); err == nil {
		t.Fatal("relative path was accepted")
	}
}
