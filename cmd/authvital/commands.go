// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/mitchellh/cli"

	"github.com/authvital/sdk-go/internal/command"
)

// initCommands returns the factories for every subcommand, all sharing
// the given meta.
func initCommands(meta command.Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"introspect": func() (cli.Command, error) {
			return &command.IntrospectCommand{Meta: meta}, nil
		},
		"login": func() (cli.Command, error) {
			return &command.LoginCommand{Meta: meta}, nil
		},
		"logout": func() (cli.Command, error) {
			return &command.LogoutCommand{Meta: meta}, nil
		},
		"token": func() (cli.Command, error) {
			return &command.TokenCommand{Meta: meta}, nil
		},
		"userinfo": func() (cli.Command, error) {
			return &command.UserInfoCommand{Meta: meta}, nil
		},
		"version": func() (cli.Command, error) {
			return &command.VersionCommand{Meta: meta}, nil
		},
	}
}
