// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package signer

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// AuthMethod is a token endpoint client authentication method as named
// in the OpenID Connect discovery metadata.
type AuthMethod string

const (
	AuthMethodBasic AuthMethod = "client_secret_basic"
	AuthMethodPost  AuthMethod = "client_secret_post"
	AuthMethodNone  AuthMethod = "none"
)

// ParseAuthMethod returns the AuthMethod named by s. The empty string
// selects client_secret_basic.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch m := AuthMethod(s); m {
	case "":
		return AuthMethodBasic, nil
	case AuthMethodBasic, AuthMethodPost, AuthMethodNone:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported client authentication method %q", s)
	}
}

// ClientAuth holds the credentials a confidential or public client uses
// to authenticate to the token, introspection and revocation endpoints.
type ClientAuth struct {
	Method       AuthMethod
	ClientID     string
	ClientSecret string
}

func (a ClientAuth) apply(h http.Header, form *url.Values) error {
	switch a.Method {
	case "":
		return nil
	case AuthMethodBasic:
		if a.ClientID == "" {
			return errors.New("client_secret_basic requires a client ID")
		}
		// RFC 6749 section 2.3.1 requires both parts to be form-encoded
		// before they are combined.
		req := http.Request{Header: h}
		req.SetBasicAuth(url.QueryEscape(a.ClientID), url.QueryEscape(a.ClientSecret))
		return nil
	case AuthMethodPost:
		if a.ClientID == "" {
			return errors.New("client_secret_post requires a client ID")
		}
		ensureForm(form)
		form.Set("client_id", a.ClientID)
		form.Set("client_secret", a.ClientSecret)
		return nil
	case AuthMethodNone:
		if a.ClientID == "" {
			return errors.New("public clients must still send a client ID")
		}
		ensureForm(form)
		form.Set("client_id", a.ClientID)
		return nil
	default:
		return fmt.Errorf("unsupported client authentication method %q", a.Method)
	}
}

func ensureForm(form *url.Values) {
	if *form == nil {
		*form = url.Values{}
	}
}
