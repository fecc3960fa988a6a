// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package command implements the subcommands of the authvital program.
package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/cli"
	"github.com/opentofu/svchost/svcauth"
	"github.com/spf13/afero"

	"github.com/authvital/sdk-go/idp"
	"github.com/authvital/sdk-go/internal/credentials"
	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/sdkconfig"
	"github.com/authvital/sdk-go/internal/webbrowser"
)

// Meta holds what every command needs. It is filled in by package main, or
// by tests.
type Meta struct {
	Ui     cli.Ui
	Config *sdkconfig.Config

	// Fs is where the credentials file lives.
	Fs afero.Fs

	// CredentialsFile overrides the default credentials file location.
	CredentialsFile string

	// Browser opens the login page. If nil, login only prints the URL.
	Browser webbrowser.Launcher

	// HTTPClient, if set, is used for every request to the platform.
	HTTPClient *http.Client

	// Context is the parent of every command's context.
	Context context.Context
}

// CommandContext returns the context for a command to run in.
func (m *Meta) CommandContext() context.Context {
	if m.Context == nil {
		return context.Background()
	}
	return m.Context
}

// defaultFlagSet returns a flag set whose errors and usage output go to
// the UI instead of the process's stderr.
func (m *Meta) defaultFlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = func() {}
	return f
}

// client returns a platform client configured from m.Config. The extra
// options are applied last.
func (m *Meta) client(ctx context.Context, extra ...idp.Option) (*idp.Client, error) {
	cfg := m.Config
	if cfg == nil {
		cfg = &sdkconfig.BuiltinConfig
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("no identity platform is configured; set \"host\" in the config file or the %s environment variable", sdkconfig.EnvHost)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("no client ID is configured; set \"client_id\" in the config file or the %s environment variable", sdkconfig.EnvClientID)
	}

	policy := idp.DefaultRetryPolicy()
	policy.MaxRetries = cfg.RetryCount

	opts := []idp.Option{
		idp.WithHost(cfg.HostURL()),
		idp.WithClientID(cfg.ClientID),
		idp.WithClientSecret(cfg.ClientSecret),
		idp.WithScopes(cfg.Scopes...),
		idp.WithAudience(cfg.Audience),
		idp.WithRedirectURL(cfg.RedirectURL),
		idp.WithAuthMethod(idp.AuthMethod(cfg.AuthMethod)),
		idp.WithRetryPolicy(policy),
		idp.WithRequestTimeout(cfg.RequestTimeout),
		idp.WithLogger(logging.HCLogger().Named("idp")),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, idp.WithRateLimit(cfg.RateLimit, max(1, int(cfg.RateLimit))))
	}
	if m.HTTPClient != nil {
		opts = append(opts, idp.WithHTTPClient(m.HTTPClient))
	}
	return idp.New(ctx, append(opts, extra...)...)
}

// credentialsStore returns the configured credentials helper, or the
// credentials file if there is none. The second result describes the
// store for messages.
func (m *Meta) credentialsStore() (svcauth.CredentialsStore, string, error) {
	if m.Config != nil {
		if name, helper := m.Config.CredentialsHelper(); helper != nil {
			store, err := credentials.FindHelper(name, helper.Args...)
			if err != nil {
				return nil, "", err
			}
			return store, fmt.Sprintf("the %q credentials helper", name), nil
		}
	}

	path := m.CredentialsFile
	if path == "" {
		var err error
		path, err = credentials.DefaultFilePath()
		if err != nil {
			return nil, "", err
		}
	}
	fsys := m.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return credentials.NewFileStore(fsys, path), path, nil
}

// showError writes err to the UI, one line per error when it aggregates
// several.
func (m *Meta) showError(summary string, err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 1 {
		var buf strings.Builder
		fmt.Fprintf(&buf, "Error: %s:\n", summary)
		for _, e := range merr.Errors {
			fmt.Fprintf(&buf, "  - %s\n", e)
		}
		m.Ui.Error(strings.TrimRight(buf.String(), "\n"))
		return
	}
	m.Ui.Error(fmt.Sprintf("Error: %s: %s", summary, err))
}

// flagStringSlice is a flag.Value collecting every use of a repeated flag.
type flagStringSlice []string

func (v *flagStringSlice) String() string {
	return strings.Join(*v, " ")
}

func (v *flagStringSlice) Set(raw string) error {
	*v = append(*v, raw)
	return nil
}
