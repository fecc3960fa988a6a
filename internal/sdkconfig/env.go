// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package sdkconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/authvital/sdk-go/internal/logging"
)

const (
	EnvConfigFile     = "AUTHVITAL_CONFIG_FILE"
	EnvHost           = "AUTHVITAL_HOST"
	EnvClientID       = "AUTHVITAL_CLIENT_ID"
	EnvClientSecret   = "AUTHVITAL_CLIENT_SECRET"
	EnvScopes         = "AUTHVITAL_SCOPES"
	EnvRetryCount     = "AUTHVITAL_RETRY_COUNT"
	EnvRequestTimeout = "AUTHVITAL_REQUEST_TIMEOUT"
)

// EnvConfig returns a Config describing the settings given in environment
// variables, or nil if none are set.
func EnvConfig() *Config {
	ret := Config{
		Host:         strings.TrimSpace(os.Getenv(EnvHost)),
		ClientID:     strings.TrimSpace(os.Getenv(EnvClientID)),
		ClientSecret: os.Getenv(EnvClientSecret),
		Scopes:       SplitScopes(os.Getenv(EnvScopes)),
	}
	if v := os.Getenv(EnvRetryCount); v != "" {
		override, err := strconv.Atoi(v)
		if err == nil && override >= 0 {
			ret.RetryCount = override
			ret.RetryCountSet = true
		} else {
			logging.HCLogger().Warn("ignoring invalid value", "variable", EnvRetryCount, "value", v)
		}
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		override, err := strconv.Atoi(v)
		if err == nil && override > 0 {
			ret.RequestTimeout = time.Duration(override) * time.Second
			ret.RequestTimeoutSet = true
		} else {
			logging.HCLogger().Warn("ignoring invalid value", "variable", EnvRequestTimeout, "value", v)
		}
	}

	if ret.Host == "" && ret.ClientID == "" && ret.ClientSecret == "" && len(ret.Scopes) == 0 &&
		!ret.RetryCountSet && !ret.RequestTimeoutSet {
		// If nothing is set then we behave as if there were no environment
		// configuration at all.
		return nil
	}
	return &ret
}

// SplitScopes splits a scope list separated by spaces and/or commas.
func SplitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
