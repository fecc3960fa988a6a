// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package sdkconfig loads the settings used by the authvital CLI and by
// applications that want to configure the SDK the same way: an HCL config
// file, overridden by environment variables.
package sdkconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
	"github.com/spf13/afero"

	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/signer"
)

// Config is the merged configuration. Fields with a corresponding *Set
// field track whether the value was given explicitly, because their zero
// values are meaningful; other fields are considered set when non-empty.
type Config struct {
	Host         string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Audience     string
	RedirectURL  string
	AuthMethod   string

	RetryCount    int
	RetryCountSet bool

	RequestTimeout    time.Duration
	RequestTimeoutSet bool

	RateLimit    float64
	RateLimitSet bool

	CredentialsHelpers map[string]*CredentialsHelper
}

// CredentialsHelper is a credentials_helper block.
type CredentialsHelper struct {
	Args []string `hcl:"args"`
}

// BuiltinConfig holds the defaults that apply before any file or
// environment variable.
var BuiltinConfig Config

const (
	defaultRetryCount     = 3
	defaultRequestTimeout = 10 * time.Second
)

func init() {
	BuiltinConfig = Config{
		AuthMethod:        string(signer.AuthMethodBasic),
		RetryCount:        defaultRetryCount,
		RetryCountSet:     true,
		RequestTimeout:    defaultRequestTimeout,
		RequestTimeoutSet: true,
	}
}

// LoadConfig returns the builtin defaults, overridden by the config file if
// there is one, overridden by the environment.
func LoadConfig(fsys afero.Fs) (*Config, error) {
	builtin := BuiltinConfig
	config := &builtin

	path, err := ConfigFile()
	if err != nil {
		logging.HCLogger().Warn("cannot locate the config file", "error", err)
	} else {
		fileConfig, err := LoadConfigFile(fsys, path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logging.HCLogger().Debug("no config file", "path", path)
		case err != nil:
			return nil, err
		default:
			config = config.Merge(fileConfig)
		}
	}

	if envConfig := EnvConfig(); envConfig != nil {
		config = config.Merge(envConfig)
	}
	return config, nil
}

// configFile mirrors the file's structure. Pointers distinguish absent
// settings from zero values.
type configFile struct {
	Host               *string                       `hcl:"host"`
	ClientID           *string                       `hcl:"client_id"`
	ClientSecret       *string                       `hcl:"client_secret"`
	Scopes             []string                      `hcl:"scopes"`
	Audience           *string                       `hcl:"audience"`
	RedirectURL        *string                       `hcl:"redirect_url"`
	AuthMethod         *string                       `hcl:"auth_method"`
	RetryCount         *int                          `hcl:"retry_count"`
	RequestTimeout     *int                          `hcl:"request_timeout_seconds"`
	RateLimit          *float64                      `hcl:"rate_limit"`
	CredentialsHelpers map[string]*CredentialsHelper `hcl:"credentials_helper"`
}

// LoadConfigFile reads a single config file. The error wraps
// fs.ErrNotExist if the file does not exist.
func LoadConfigFile(fsys afero.Fs, path string) (*Config, error) {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	config, err := ParseConfig(string(src))
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	logging.HCLogger().Debug("loaded config file", "path", path)
	return config, nil
}

// ParseConfig decodes config file source.
func ParseConfig(src string) (*Config, error) {
	obj, err := hcl.Parse(src)
	if err != nil {
		return nil, err
	}
	var raw configFile
	if err := hcl.DecodeObject(&raw, obj); err != nil {
		return nil, err
	}

	ret := &Config{
		Scopes:             raw.Scopes,
		CredentialsHelpers: raw.CredentialsHelpers,
	}
	setString(&ret.Host, raw.Host)
	setString(&ret.ClientID, raw.ClientID)
	setString(&ret.ClientSecret, raw.ClientSecret)
	setString(&ret.Audience, raw.Audience)
	setString(&ret.RedirectURL, raw.RedirectURL)
	setString(&ret.AuthMethod, raw.AuthMethod)
	if raw.RetryCount != nil {
		ret.RetryCount = *raw.RetryCount
		ret.RetryCountSet = true
	}
	if raw.RequestTimeout != nil {
		ret.RequestTimeout = time.Duration(*raw.RequestTimeout) * time.Second
		ret.RequestTimeoutSet = true
	}
	if raw.RateLimit != nil {
		ret.RateLimit = *raw.RateLimit
		ret.RateLimitSet = true
	}
	return ret, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Merge returns a new Config with the settings of override taking
// precedence over those of c. Neither argument is modified.
func (c *Config) Merge(override *Config) *Config {
	if override == nil {
		return c
	}
	ret := *c

	mergeString(&ret.Host, override.Host)
	mergeString(&ret.ClientID, override.ClientID)
	mergeString(&ret.ClientSecret, override.ClientSecret)
	mergeString(&ret.Audience, override.Audience)
	mergeString(&ret.RedirectURL, override.RedirectURL)
	mergeString(&ret.AuthMethod, override.AuthMethod)
	if len(override.Scopes) > 0 {
		ret.Scopes = append([]string(nil), override.Scopes...)
	} else {
		ret.Scopes = append([]string(nil), c.Scopes...)
	}

	if override.RetryCountSet {
		ret.RetryCount = override.RetryCount
		ret.RetryCountSet = true
	}
	if override.RequestTimeoutSet {
		ret.RequestTimeout = override.RequestTimeout
		ret.RequestTimeoutSet = true
	}
	if override.RateLimitSet {
		ret.RateLimit = override.RateLimit
		ret.RateLimitSet = true
	}

	if len(c.CredentialsHelpers) > 0 || len(override.CredentialsHelpers) > 0 {
		ret.CredentialsHelpers = make(map[string]*CredentialsHelper)
		for name, helper := range c.CredentialsHelpers {
			ret.CredentialsHelpers[name] = helper
		}
		for name, helper := range override.CredentialsHelpers {
			ret.CredentialsHelpers[name] = helper
		}
	}
	return &ret
}

func mergeString(dst *string, override string) {
	if override != "" {
		*dst = override
	}
}

// HostURL returns the platform base URL. A bare hostname is taken to mean
// HTTPS.
func (c *Config) HostURL() string {
	if c.Host == "" || strings.Contains(c.Host, "://") {
		return strings.TrimSuffix(c.Host, "/")
	}
	return "https://" + strings.TrimSuffix(c.Host, "/")
}

// CredentialsHelper returns the name and block of the configured
// credentials helper, if any.
func (c *Config) CredentialsHelper() (string, *CredentialsHelper) {
	for name, helper := range c.CredentialsHelpers {
		return name, helper
	}
	return "", nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Host != "" {
		u, err := url.Parse(c.HostURL())
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("invalid host %q: %w", c.Host, err))
		case u.Scheme != "https" && u.Scheme != "http":
			result = multierror.Append(result, fmt.Errorf("invalid host %q: scheme must be http or https", c.Host))
		case u.Host == "":
			result = multierror.Append(result, fmt.Errorf("invalid host %q: no hostname", c.Host))
		}
	}
	if c.RedirectURL != "" {
		if u, err := url.Parse(c.RedirectURL); err != nil || !u.IsAbs() {
			result = multierror.Append(result, fmt.Errorf("redirect_url %q must be an absolute URL", c.RedirectURL))
		}
	}
	method, err := signer.ParseAuthMethod(c.AuthMethod)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("auth_method: %w", err))
	} else if method != signer.AuthMethodNone && c.ClientID != "" && c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client_secret is required with auth_method %q", method))
	}
	if c.RetryCount < 0 {
		result = multierror.Append(result, fmt.Errorf("retry_count must not be negative"))
	}
	if c.RequestTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout_seconds must not be negative"))
	}
	if c.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("rate_limit must not be negative"))
	}
	if len(c.CredentialsHelpers) > 1 {
		result = multierror.Append(result, fmt.Errorf("no more than one credentials_helper block may be specified"))
	}
	for _, scope := range c.Scopes {
		if strings.ContainsAny(scope, " \t\n") {
			result = multierror.Append(result, fmt.Errorf("scope %q must not contain whitespace", scope))
		}
	}

	return result.ErrorOrNil()
}
