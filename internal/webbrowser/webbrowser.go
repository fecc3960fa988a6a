// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package webbrowser opens URLs in the user's web browser, for the login
// flow of the authvital command.
package webbrowser

import (
	"io"

	"github.com/cli/browser"
)

// Launcher is an object that knows how to open a given URL in a new tab in
// some suitable browser on the current system.
//
// Launching of browsers is a very target-platform-sensitive activity, so
// this interface serves as an abstraction over many possible
// implementations which can be selected based on what is appropriate for
// a specific situation.
type Launcher interface {
	OpenURL(url string) error
}

// NewNativeLauncher returns a Launcher that uses the usual mechanism of the
// current operating system to open a URL in the user's default browser.
func NewNativeLauncher() Launcher {
	return nativeLauncher{}
}

type nativeLauncher struct{}

func (l nativeLauncher) OpenURL(url string) error {
	// The browser package writes whatever the launched program prints to
	// our own stdout by default, which would interleave with command
	// output.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(url)
}
