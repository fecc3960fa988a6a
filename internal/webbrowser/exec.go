// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package webbrowser

import (
	"fmt"
	"os"
	"os/exec"
)

// NewExecLauncher returns a Launcher that runs the executable at execPath
// with the URL as its only argument. The path is used as given, without
// searching PATH.
func NewExecLauncher(execPath string) Launcher {
	return execLauncher{
		execPath: execPath,
	}
}

type execLauncher struct {
	execPath string
}

func (l execLauncher) OpenURL(url string) error {
	cmd := &exec.Cmd{
		Path: l.execPath,
		Args: []string{l.execPath, url},
		Env:  os.Environ(),
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", l.execPath, err)
	}
	return nil
}

// ParseBrowserEnv interprets the value of a BROWSER environment variable in
// its simple form, where it names a single command taking the URL as its
// only argument. It returns the command's absolute path, or an empty
// string if the value can't be used that way.
func ParseBrowserEnv(raw string) string {
	if raw == "" {
		return ""
	}
	execPath, err := exec.LookPath(raw)
	if err != nil {
		// BROWSER isn't ours, so a value meant for some other program's
		// interpretation is not an error.
		return ""
	}
	return execPath
}

// FromEnv returns an exec launcher for the BROWSER environment variable if
// it names a usable command, or the native launcher otherwise.
func FromEnv() Launcher {
	if execPath := ParseBrowserEnv(os.Getenv("BROWSER")); execPath != "" {
		return NewExecLauncher(execPath)
	}
	return NewNativeLauncher()
}
