// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"github.com/opentofu/svchost"
	"github.com/opentofu/svchost/svcauth"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// HelperStore runs an external program to get, store and forget
// credentials, so that tokens can live in an OS keychain or a secrets
// manager instead of a plain file.
//
// The program is run with the configured arguments followed by one of the
// verbs "get", "store" or "forget" and the hostname in ASCII compatibility
// form. For "get" it must print a JSON object such as {"token":"..."} or
// {} when it has nothing; for "store" the same shape is written to its
// standard input. A non-zero exit status means failure, described on
// standard error.
type HelperStore struct {
	executable string
	args       []string
}

var _ svcauth.CredentialsStore = (*HelperStore)(nil)

// NewHelperStore returns a store that runs the program at the given
// absolute path.
func NewHelperStore(executable string, args ...string) (*HelperStore, error) {
	if !filepath.IsAbs(executable) {
		return nil, fmt.Errorf("credentials helper path %q must be absolute", executable)
	}
	return &HelperStore{
		executable: executable,
		args:       append([]string(nil), args...),
	}, nil
}

// FindHelper locates a helper program named authvital-credentials-NAME on
// PATH, and returns a store that runs it.
func FindHelper(name string, args ...string) (*HelperStore, error) {
	path, err := exec.LookPath("authvital-credentials-" + name)
	if err != nil {
		return nil, fmt.Errorf("credentials helper %q not found: %w", name, err)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return NewHelperStore(path, args...)
}

func (s *HelperStore) ForHost(ctx context.Context, host svchost.Hostname) (svcauth.HostCredentials, error) {
	var outBuf bytes.Buffer
	if err := s.run(ctx, "get", host, nil, &outBuf); err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(outBuf.Bytes(), &m); err != nil {
		return nil, fmt.Errorf("malformed output from %s: %w", s.executable, err)
	}
	return HostCredentialsFromMap(m), nil
}

func (s *HelperStore) StoreForHost(ctx context.Context, host svchost.Hostname, credentials svcauth.NewHostCredentials) error {
	toStore := credentials.ToStore()
	toStoreRaw, err := ctyjson.Marshal(toStore, toStore.Type())
	if err != nil {
		return fmt.Errorf("can't serialize credentials to store: %w", err)
	}
	return s.run(ctx, "store", host, bytes.NewReader(toStoreRaw), nil)
}

func (s *HelperStore) ForgetForHost(ctx context.Context, host svchost.Hostname) error {
	return s.run(ctx, "forget", host, nil, nil)
}

func (s *HelperStore) run(ctx context.Context, verb string, host svchost.Hostname, stdin io.Reader, stdout io.Writer) error {
	args := make([]string, 0, len(s.args)+2)
	args = append(args, s.args...)
	args = append(args, verb, string(host))

	var errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, s.executable, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &errBuf

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		errText := errBuf.String()
		if errText == "" {
			// Shouldn't happen for a well-behaved helper program
			return fmt.Errorf("error in %s, but it produced no error message", s.executable)
		}
		return fmt.Errorf("error in %s: %s", s.executable, errText)
	} else if err != nil {
		return fmt.Errorf("failed to run %s: %w", s.executable, err)
	}
	return nil
}
