// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opentofu/svchost"
	"github.com/opentofu/svchost/svcauth"
	"github.com/spf13/afero"
)

const testPath = "/home/ada/.authvital/credentials.json"

func TestFileStore(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewFileStore(fsys, testPath)
	host := svchost.Hostname("id.example.com")

	t.Run("empty", func(t *testing.T) {
		creds, err := store.ForHost(t.Context(), host)
		if err != nil {
			t.Fatal(err)
		}
		if creds != nil {
			t.Errorf("got credentials from an empty store")
		}
	})

	t.Run("store and read back", func(t *testing.T) {
		if err := store.StoreForHost(t.Context(), host, svcauth.HostCredentialsToken("tok-1")); err != nil {
			t.Fatal(err)
		}
		if err := store.StoreForHost(t.Context(), svchost.Hostname("other.example.com"), svcauth.HostCredentialsToken("tok-2")); err != nil {
			t.Fatal(err)
		}

		creds, err := store.ForHost(t.Context(), host)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := BearerToken(t, creds), "tok-1"; got != want {
			t.Errorf("wrong token %q; want %q", got, want)
		}

		hosts, err := store.Hosts()
		if err != nil {
			t.Fatal(err)
		}
		want := []svchost.Hostname{"id.example.com", "other.example.com"}
		if diff := cmp.Diff(want, hosts); diff != "" {
			t.Errorf("wrong hosts\n%s", diff)
		}
	})

	t.Run("file format", func(t *testing.T) {
		src, err := afero.ReadFile(fsys, testPath)
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]map[string]map[string]string
		if err := json.Unmarshal(src, &got); err != nil {
			t.Fatalf("file is not valid JSON: %s", err)
		}
		want := map[string]map[string]map[string]string{
			"credentials": {
				"id.example.com":    {"token": "tok-1"},
				"other.example.com": {"token": "tok-2"},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrong file content\n%s", diff)
		}

		info, err := fsys.Stat(testPath)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := info.Mode().Perm(), fs.FileMode(0o600); got != want {
			t.Errorf("wrong file mode %s; want %s", got, want)
		}
	})

	t.Run("no temporary files left behind", func(t *testing.T) {
		entries, err := afero.ReadDir(fsys, "/home/ada/.authvital")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("unexpected directory content %v", names)
		}
	})

	t.Run("forget", func(t *testing.T) {
		if err := store.ForgetForHost(t.Context(), host); err != nil {
			t.Fatal(err)
		}
		creds, err := store.ForHost(t.Context(), host)
		if err != nil {
			t.Fatal(err)
		}
		if creds != nil {
			t.Errorf("credentials survived forget")
		}
		if err := store.ForgetForHost(t.Context(), svchost.Hostname("never.example.com")); err != nil {
			t.Errorf("forgetting unknown host failed: %s", err)
		}
	})

	t.Run("forget last removes file", func(t *testing.T) {
		if err := store.ForgetForHost(t.Context(), svchost.Hostname("other.example.com")); err != nil {
			t.Fatal(err)
		}
		exists, err := afero.Exists(fsys, testPath)
		if err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Error("empty credentials file was not removed")
		}
	})
}

func TestFileStore_malformed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, testPath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(fsys, testPath)
	if _, err := store.ForHost(t.Context(), svchost.Hostname("id.example.com")); err == nil {
		t.Fatal("malformed file was accepted")
	}
	if err := store.StoreForHost(t.Context(), svchost.Hostname("id.example.com"), svcauth.HostCredentialsToken("x")); err == nil {
		t.Fatal("store overwrote a malformed file")
	}
}

func TestHostCredentialsFromMap(t *testing.T) {
	if got := HostCredentialsFromMap(nil); got != nil {
		t.Errorf("nil map produced credentials")
	}
	if got := HostCredentialsFromMap(map[string]any{"username": "ada"}); got != nil {
		t.Errorf("map without token produced credentials")
	}
	if got := HostCredentialsFromMap(map[string]any{"token": ""}); got != nil {
		t.Errorf("empty token produced credentials")
	}
	creds := HostCredentialsFromMap(map[string]any{"token": "abc", "future": true})
	if creds == nil {
		t.Fatal("no credentials produced")
	}
	if got, want := BearerToken(t, creds), "abc"; got != want {
		t.Errorf("wrong token %q; want %q", got, want)
	}
}
