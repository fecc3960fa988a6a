// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package webbrowser

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMockLauncher(t *testing.T) {
	var landed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		landed.Store(true)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	l := NewMockLauncher(t.Context())
	if err := l.OpenURL(srv.URL + "/start"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(); err != nil {
		t.Fatal(err)
	}
	if !landed.Load() {
		t.Error("redirect was not followed")
	}
	if diff := cmp.Diff([]string{srv.URL + "/start"}, l.Opened()); diff != "" {
		t.Errorf("wrong opened URLs\n%s", diff)
	}

	if err := l.OpenURL(srv.URL + "/nowhere"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(); err == nil {
		t.Error("visiting a missing page did not fail")
	}
}

func TestParseBrowserEnv(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "my-browser")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"":                         "",
		exe:                        exe,
		filepath.Join(dir, "nope"): "",
		"firefox --new-tab":        "",
	}
	for raw, want := range tests {
		if got := ParseBrowserEnv(raw); got != want {
			t.Errorf("ParseBrowserEnv(%q) = %q; want %q", raw, got, want)
		}
	}
}
