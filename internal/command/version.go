// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/version"
)

// VersionCommand is a Command implementation that prints the version.
type VersionCommand struct {
	Meta
}

type versionOutput struct {
	Version      string            `json:"version"`
	Platform     string            `json:"platform"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (c *VersionCommand) Help() string {
	helpText := `
Usage: authvital version [options]

  Displays the version of the AuthVital SDK and of the libraries that most
  affect how it talks to the identity platform.

Options:

  -json       Output the version information as a JSON object.
`
	return strings.TrimSpace(helpText)
}

func (c *VersionCommand) Run(args []string) int {
	var jsonOutput bool
	cmdFlags := c.defaultFlagSet("version")
	cmdFlags.BoolVar(&jsonOutput, "json", false, "json")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}

	out := versionOutput{
		Version:  version.String(),
		Platform: runtime.GOOS + "_" + runtime.GOARCH,
	}
	deps := version.InterestingDependencies()
	if len(deps) > 0 {
		out.Dependencies = make(map[string]string, len(deps))
		for _, dep := range deps {
			out.Dependencies[dep.Path] = dep.Version
		}
	}

	if jsonOutput {
		raw, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			c.showError("Failed to encode version information", err)
			return 1
		}
		c.Ui.Output(string(raw))
		return 0
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "AuthVital SDK v%s\non %s", out.Version, out.Platform)
	for _, dep := range deps {
		fmt.Fprintf(&buf, "\n+ %s %s", dep.Path, dep.Version)
	}
	c.Ui.Output(buf.String())
	return 0
}

func (c *VersionCommand) Synopsis() string {
	return "Show the current version"
}
