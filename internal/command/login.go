// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/cli"
	"github.com/opentofu/svchost/svcauth"

	"github.com/authvital/sdk-go/idp"
	"github.com/authvital/sdk-go/internal/tracing"
)

// loginTimeout bounds how long login waits for the browser to come back.
const loginTimeout = 5 * time.Minute

const callbackPath = "/login"

// LoginCommand is a Command implementation that logs a user in with the
// authorization code grant and PKCE, and stores the resulting access token
// for the platform host.
type LoginCommand struct {
	Meta
}

type loginResult struct {
	code string
	err  error
}

func (c *LoginCommand) Run(args []string) int {
	ctx := c.CommandContext()
	ctx, span := tracing.Tracer().Start(ctx, "Login")
	defer span.End()

	var noBrowser bool
	cmdFlags := c.defaultFlagSet("login")
	cmdFlags.BoolVar(&noBrowser, "no-browser", false, "no-browser")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	if cmdFlags.NArg() != 0 {
		c.Ui.Error("The login command expects no positional arguments.")
		return cli.RunResultHelp
	}

	listener, redirect, err := c.listen()
	if err != nil {
		c.showError("Cannot listen for the login callback", err)
		return 1
	}
	defer listener.Close()

	client, err := c.client(ctx, idp.WithRedirectURL(redirect.String()))
	if err != nil {
		c.showError("Invalid configuration", err)
		return 1
	}
	dispHostname := client.Hostname().ForDisplay()

	store, where, err := c.credentialsStore()
	if err != nil {
		c.showError("Failed to open the credentials store", err)
		return 1
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	authURL, verifier, err := client.AuthCodeURL(ctx, state, idp.WithNonce(nonce))
	if err != nil {
		tracing.SetSpanError(span, err)
		c.showError(fmt.Sprintf("Cannot start login to %s", dispHostname), err)
		return 1
	}

	results := make(chan loginResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(redirect.Path, state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] login callback server: %s", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if noBrowser || c.Browser == nil {
		c.Ui.Output(fmt.Sprintf("Open the following URL in a web browser to log in to %s:\n\n    %s\n", dispHostname, authURL))
	} else {
		c.Ui.Output(fmt.Sprintf("Opening a web browser to log in to %s.", dispHostname))
		if err := c.Browser.OpenURL(authURL); err != nil {
			log.Printf("[WARN] Failed to open a web browser: %s", err)
			c.Ui.Output(fmt.Sprintf("Could not open a web browser. Open the following URL to continue:\n\n    %s\n", authURL))
		}
	}
	c.Ui.Output("Waiting for the login to complete...")

	waitCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	var result loginResult
	select {
	case result = <-results:
	case <-waitCtx.Done():
		result.err = fmt.Errorf("gave up waiting for the browser: %w", waitCtx.Err())
	}
	if result.err != nil {
		tracing.SetSpanError(span, result.err)
		c.showError("Login failed", result.err)
		return 1
	}

	tok, err := client.Exchange(ctx, result.code, verifier)
	if err != nil {
		tracing.SetSpanError(span, err)
		c.showError("Login failed", err)
		return 1
	}

	subject := ""
	if rawID, ok := tok.Extra("id_token").(string); ok && rawID != "" {
		claims, err := client.VerifyIDToken(ctx, rawID, nonce)
		if err != nil {
			tracing.SetSpanError(span, err)
			c.showError("Login failed", err)
			return 1
		}
		subject = claims.Subject
		if claims.Email != "" {
			subject = claims.Email
		}
	}

	if err := store.StoreForHost(ctx, client.Hostname(), svcauth.HostCredentialsToken(tok.AccessToken)); err != nil {
		tracing.SetSpanError(span, err)
		c.showError(fmt.Sprintf("Failed to save credentials to %s", where), err)
		return 1
	}

	if subject != "" {
		c.Ui.Output(fmt.Sprintf("Success! Logged in to %s as %s.", dispHostname, subject))
	} else {
		c.Ui.Output(fmt.Sprintf("Success! Logged in to %s.", dispHostname))
	}
	c.Ui.Output(fmt.Sprintf("The access token was saved to %s.", where))
	return 0
}

// listen opens the loopback listener that receives the login redirect. A
// configured loopback redirect URL fixes the port; otherwise any free port
// is used.
func (c *LoginCommand) listen() (net.Listener, *url.URL, error) {
	addr := "127.0.0.1:0"
	path := callbackPath
	if c.Config != nil && c.Config.RedirectURL != "" {
		u, err := url.Parse(c.Config.RedirectURL)
		if err != nil {
			return nil, nil, err
		}
		if u.Scheme != "http" || (u.Hostname() != "127.0.0.1" && u.Hostname() != "localhost") {
			return nil, nil, fmt.Errorf("redirect URL %s is not a loopback http URL", c.Config.RedirectURL)
		}
		addr = net.JoinHostPort("127.0.0.1", u.Port())
		if u.Path != "" {
			path = u.Path
		}
	}

	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, nil, err
	}
	return listener, &url.URL{
		Scheme: "http",
		Host:   listener.Addr().String(),
		Path:   path,
	}, nil
}

// callbackHandler reports the outcome of the first request to path on
// results. Requests for other paths, such as a browser asking for a
// favicon, get a 404 and are otherwise ignored.
func callbackHandler(path, state string, results chan<- loginResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		var result loginResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "Login response has the wrong state. Start the login again.", http.StatusBadRequest)
			result.err = errors.New("login response has the wrong state")
		case q.Get("error") != "":
			http.Error(w, "Login failed. Return to the terminal for details.", http.StatusBadRequest)
			result.err = fmt.Errorf("the identity platform refused the login: %s", strings.TrimSpace(q.Get("error")+" "+q.Get("error_description")))
		case q.Get("code") == "":
			http.Error(w, "Login response has no authorization code.", http.StatusBadRequest)
			result.err = errors.New("login response has no authorization code")
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><p>Login complete. You can close this window and return to the terminal.</p></body></html>")
			result.code = q.Get("code")
		}

		select {
		case results <- result:
		default:
			// Only the first response counts.
		}
	})
}

func (c *LoginCommand) Help() string {
	helpText := `
Usage: authvital login [options]

  Logs in to the configured identity platform in a web browser, and saves
  the resulting access token in the credentials file or credentials helper.

  The configured client must allow the authorization code grant with a
  loopback redirect URL such as http://127.0.0.1/login.

Options:

  -no-browser   Print the login URL instead of opening a browser.
`
	return strings.TrimSpace(helpText)
}

func (c *LoginCommand) Synopsis() string {
	return "Log in to the identity platform"
}
