// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/opentofu/svchost"
	"github.com/opentofu/svchost/svcauth"
	"github.com/spf13/afero"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/authvital/sdk-go/internal/logging"
)

const (
	// FileName is the name of the credentials file inside the config
	// directory.
	FileName = "credentials.json"

	fileMode = 0o600
	dirMode  = 0o700
)

// FileStore keeps credentials in a JSON file of the form
//
//	{"credentials": {"id.example.com": {"token": "..."}}}
//
// Writes replace the whole file atomically.
type FileStore struct {
	fs   afero.Fs
	path string

	mu sync.Mutex
}

var _ svcauth.CredentialsStore = (*FileStore)(nil)

// NewFileStore returns a store backed by the file at path on fsys.
func NewFileStore(fsys afero.Fs, path string) *FileStore {
	return &FileStore{fs: fsys, path: path}
}

// DefaultFilePath returns ~/.authvital/credentials.json.
func DefaultFilePath() (string, error) {
	dir, err := homedir.Expand("~/.authvital")
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(dir, FileName), nil
}

// Path returns the location of the credentials file.
func (s *FileStore) Path() string {
	return s.path
}

type credentialsFile struct {
	Credentials map[string]json.RawMessage `json:"credentials"`
}

func (s *FileStore) ForHost(ctx context.Context, host svchost.Hostname) (svcauth.HostCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := file.Credentials[string(host)]
	if !ok {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid credentials for %s in %s: %w", host.ForDisplay(), s.path, err)
	}
	return HostCredentialsFromMap(m), nil
}

func (s *FileStore) StoreForHost(ctx context.Context, host svchost.Hostname, credentials svcauth.NewHostCredentials) error {
	toStore := credentials.ToStore()
	raw, err := ctyjson.Marshal(toStore, toStore.Type())
	if err != nil {
		return fmt.Errorf("can't serialize credentials to store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	file.Credentials[string(host)] = raw
	return s.save(file)
}

func (s *FileStore) ForgetForHost(ctx context.Context, host svchost.Hostname) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Credentials[string(host)]; !ok {
		return nil
	}
	delete(file.Credentials, string(host))
	return s.save(file)
}

// Hosts returns the hostnames that have stored credentials, sorted.
func (s *FileStore) Hosts() ([]svchost.Hostname, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	hosts := make([]svchost.Hostname, 0, len(file.Credentials))
	for k := range file.Credentials {
		hosts = append(hosts, svchost.Hostname(k))
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })
	return hosts, nil
}

func (s *FileStore) load() (*credentialsFile, error) {
	file := &credentialsFile{}
	src, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		file.Credentials = make(map[string]json.RawMessage)
		return file, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	if len(src) > 0 {
		if err := json.Unmarshal(src, file); err != nil {
			return nil, fmt.Errorf("invalid credentials file %s: %w", s.path, err)
		}
	}
	if file.Credentials == nil {
		file.Credentials = make(map[string]json.RawMessage)
	}
	return file, nil
}

func (s *FileStore) save(file *credentialsFile) error {
	if len(file.Credentials) == 0 {
		logging.HCLogger().Debug("removing credentials file, since no credentials remain in it", "path", s.path)
		err := s.fs.Remove(s.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing credentials file: %w", err)
		}
		return nil
	}

	src, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("can't serialize credentials file: %w", err)
	}
	src = append(src, '\n')

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	// Write to a temporary file first so that a reader never sees a
	// partially-written file.
	tmp, err := afero.TempFile(s.fs, dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("creating temporary credentials file: %w", err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Chmod(tmpName, fileMode)
	}
	if err == nil {
		err = s.fs.Rename(tmpName, s.path)
	}
	if err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing credentials file: %w", err)
	}
	logging.HCLogger().Debug("wrote credentials file", "path", s.path)
	return nil
}
