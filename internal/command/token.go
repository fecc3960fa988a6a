// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/idp"
	"github.com/authvital/sdk-go/internal/tracing"
)

// TokenCommand is a Command implementation that prints a service token
// obtained with the client credentials grant.
type TokenCommand struct {
	Meta
}

type tokenOutput struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry,omitzero"`
	Scope       string    `json:"scope,omitempty"`
}

func (c *TokenCommand) Run(args []string) int {
	ctx := c.CommandContext()
	ctx, span := tracing.Tracer().Start(ctx, "Token")
	defer span.End()

	var scopes flagStringSlice
	var jsonOutput bool
	cmdFlags := c.defaultFlagSet("token")
	cmdFlags.Var(&scopes, "scope", "scope")
	cmdFlags.BoolVar(&jsonOutput, "json", false, "json")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() != 0 {
		c.Ui.Error("The token command expects no positional arguments.")
		return cli.RunResultHelp
	}

	var extra []idp.Option
	if len(scopes) > 0 {
		extra = append(extra, idp.WithScopes(scopes...))
	}
	client, err := c.client(ctx, extra...)
	if err != nil {
		c.showError("Invalid configuration", err)
		return 1
	}

	tok, err := client.ClientCredentialsToken(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		c.showError("Failed to obtain a token", err)
		return 1
	}

	if !jsonOutput {
		c.Ui.Output(tok.AccessToken)
		return 0
	}
	out := tokenOutput{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		c.showError("Failed to encode the token", err)
		return 1
	}
	c.Ui.Output(string(raw))
	return 0
}

func (c *TokenCommand) Help() string {
	helpText := `
Usage: authvital token [options]

  Obtains an access token for the configured client using the OAuth client
  credentials grant, and prints it.

Options:

  -scope=SCOPE   Request SCOPE instead of the configured scopes. May be
                 repeated.

  -json          Print the token, its type, expiry and granted scopes as a
                 JSON object.
`
	return strings.TrimSpace(helpText)
}

func (c *TokenCommand) Synopsis() string {
	return "Print a service access token"
}
