// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package credentials persists the host credentials obtained by the CLI
// login flow, either in a JSON file or through an external helper program.
// Both stores implement svcauth.CredentialsStore.
package credentials
