// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/internal/tracing"
)

// IntrospectCommand is a Command implementation that asks the platform
// about a token.
type IntrospectCommand struct {
	Meta
}

func (c *IntrospectCommand) Run(args []string) int {
	ctx := c.CommandContext()
	ctx, span := tracing.Tracer().Start(ctx, "Introspect")
	defer span.End()

	cmdFlags := c.defaultFlagSet("introspect")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() != 1 {
		c.Ui.Error("The introspect command expects exactly one argument: the token to introspect.")
		return cli.RunResultHelp
	}

	client, err := c.client(ctx)
	if err != nil {
		c.showError("Invalid configuration", err)
		return 1
	}
	info, err := client.Introspect(ctx, cmdFlags.Arg(0))
	if err != nil {
		tracing.SetSpanError(span, err)
		c.showError("Failed to introspect the token", err)
		return 1
	}

	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		c.showError("Failed to encode the result", err)
		return 1
	}
	c.Ui.Output(string(raw))
	if !info.Active {
		return 1
	}
	return 0
}

func (c *IntrospectCommand) Help() string {
	helpText := `
Usage: authvital introspect TOKEN

  Asks the identity platform whether TOKEN is active, and prints what the
  platform knows about it as JSON.

  Exits with status 1 if the token is not active.
`
	return strings.TrimSpace(helpText)
}

func (c *IntrospectCommand) Synopsis() string {
	return "Show what the platform knows about a token"
}
