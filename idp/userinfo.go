// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/authvital/sdk-go/internal/decode"
	"github.com/authvital/sdk-go/internal/signer"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/tracing/traceattrs"
)

// UserInfo holds the standard claims returned by the userinfo endpoint.
// Every claim, standard or not, is also available in Claims.
type UserInfo struct {
	Subject       string `json:"sub"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Locale        string `json:"locale,omitempty"`

	Claims map[string]any `json:"-"`
}

func (u *UserInfo) UnmarshalJSON(b []byte) error {
	type plain UserInfo
	if err := json.Unmarshal(b, (*plain)(u)); err != nil {
		return err
	}
	return json.Unmarshal(b, &u.Claims)
}

// UserInfo fetches the claims about the user that accessToken was issued
// to.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ctx, span := tracing.Tracer().Start(ctx, "UserInfo",
		tracing.SpanAttributes(traceattrs.AuthVitalPlatformHost(c.hostname.ForDisplay())),
	)
	defer span.End()

	endpoint, err := c.endpoint(ctx, "userinfo", func(d *Discovery) string { return d.UserInfoEndpoint })
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	req, err := signer.NewRequest(http.MethodGet, endpoint).Bearer(accessToken).Build(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	info, err := decode.JSON[UserInfo](resp)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}
	if info.Subject == "" {
		err := fmt.Errorf("user info from %s has no subject", c.hostname.ForDisplay())
		tracing.SetSpanError(span, err)
		return nil, err
	}
	return info, nil
}
