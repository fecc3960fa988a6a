// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package sdkconfig

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	configDirName  = ".authvital"
	configFileName = "config.hcl"
)

// ConfigDir returns the directory holding the config and credentials
// files.
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFile returns the path of the config file, which may be overridden
// with AUTHVITAL_CONFIG_FILE.
func ConfigFile() (string, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return homedir.Expand(path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}
