// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/internal/credentials"
	"github.com/authvital/sdk-go/internal/tracing"
)

// UserInfoCommand is a Command implementation that prints the claims about
// the user a token belongs to.
type UserInfoCommand struct {
	Meta
}

func (c *UserInfoCommand) Run(args []string) int {
	ctx := c.CommandContext()
	ctx, span := tracing.Tracer().Start(ctx, "UserInfo")
	defer span.End()

	cmdFlags := c.defaultFlagSet("userinfo")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() > 1 {
		c.Ui.Error("The userinfo command expects at most one argument: the access token to use.")
		return cli.RunResultHelp
	}

	client, err := c.client(ctx)
	if err != nil {
		c.showError("Invalid configuration", err)
		return 1
	}

	token := cmdFlags.Arg(0)
	if token == "" {
		store, where, err := c.credentialsStore()
		if err != nil {
			c.showError("Failed to open the credentials store", err)
			return 1
		}
		creds, err := store.ForHost(ctx, client.Hostname())
		if err != nil {
			c.showError(fmt.Sprintf("Failed to read credentials from %s", where), err)
			return 1
		}
		if creds == nil {
			c.Ui.Error(fmt.Sprintf("No credentials are stored for %s. Run \"authvital login\" first, or pass a token as an argument.", client.Hostname().ForDisplay()))
			return 1
		}
		stored, ok := credentials.TokenFromHostCredentials(creds)
		if !ok {
			c.Ui.Error(fmt.Sprintf("The credentials stored for %s in %s don't include an access token. Run \"authvital login\" again, or pass a token as an argument.", client.Hostname().ForDisplay(), where))
			return 1
		}
		token = stored
	}

	info, err := client.UserInfo(ctx, token)
	if err != nil {
		tracing.SetSpanError(span, err)
		c.showError("Failed to fetch user info", err)
		return 1
	}
	raw, err := json.MarshalIndent(info.Claims, "", "  ")
	if err != nil {
		c.showError("Failed to encode the result", err)
		return 1
	}
	c.Ui.Output(string(raw))
	return 0
}

func (c *UserInfoCommand) Help() string {
	helpText := `
Usage: authvital userinfo [TOKEN]

  Prints the claims the identity platform returns for the user that an
  access token belongs to. Without TOKEN, uses the credentials stored by
  "authvital login".
`
	return strings.TrimSpace(helpText)
}

func (c *UserInfoCommand) Synopsis() string {
	return "Show the claims about the logged-in user"
}
