// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"log"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/idp"
	"github.com/authvital/sdk-go/internal/credentials"
	"github.com/authvital/sdk-go/internal/tracing"
)

// LogoutCommand is a Command implementation which revokes and removes
// stored credentials for the platform host.
type LogoutCommand struct {
	Meta
}

// Run implements cli.Command.
func (c *LogoutCommand) Run(args []string) int {
	ctx := c.CommandContext()
	ctx, span := tracing.Tracer().Start(ctx, "Logout")
	defer span.End()

	cmdFlags := c.defaultFlagSet("logout")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() != 0 {
		c.Ui.Error("The logout command expects no positional arguments.")
		return cli.RunResultHelp
	}

	client, err := c.client(ctx)
	if err != nil {
		c.showError("Invalid configuration", err)
		return 1
	}
	// From now on we use dispHostname in the UI so that the user sees the
	// host in its canonical form.
	dispHostname := client.Hostname().ForDisplay()

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
		c.Ui.Output(fmt.Sprintf("No credentials for %s are stored in %s.", dispHostname, where))
		return 0
	}

	// Revocation is best effort: the user wants the token gone locally
	// even if the platform can't be reached.
	if token, ok := credentials.TokenFromHostCredentials(creds); !ok {
		c.Ui.Warn(fmt.Sprintf("Warning: the credentials stored for %s don't include an access token, so there is nothing to revoke.", dispHostname))
	} else if err := client.Revoke(ctx, token, idp.HintAccessToken); err != nil {
		log.Printf("[WARN] Failed to revoke token for %s: %s", dispHostname, err)
		c.Ui.Warn(fmt.Sprintf("Warning: the access token could not be revoked, so it remains valid until it expires: %s", err))
	}

	c.Ui.Output(fmt.Sprintf("Removing the stored credentials for %s from %s...", dispHostname, where))
	if err := store.ForgetForHost(ctx, client.Hostname()); err != nil {
		tracing.SetSpanError(span, err)
		c.showError("Failed to remove the stored credentials", err)
		return 1
	}

	c.Ui.Output(fmt.Sprintf("Success! Logged out of %s.", dispHostname))
	return 0
}

// Help implements cli.Command.
func (c *LogoutCommand) Help() string {
	helpText := `
Usage: authvital logout

  Revokes the access token stored by "authvital login" for the configured
  identity platform, and removes it from local storage.

  The token is removed even if the platform cannot be reached to revoke
  it.
`
	return strings.TrimSpace(helpText)
}

// Synopsis implements cli.Command.
func (c *LogoutCommand) Synopsis() string {
	return "Remove locally-stored credentials for the identity platform"
}
