// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestGlobalLogLevel(t *testing.T) {
	tests := []struct {
		env      string
		want     hclog.Level
		wantJSON bool
	}{
		{"", hclog.Off, false},
		{"trace", hclog.Trace, false},
		{"DEBUG", hclog.Debug, false},
		{"info", hclog.Info, false},
		{"warn", hclog.Warn, false},
		{"error", hclog.Error, false},
		{"off", hclog.Off, false},
		{"json", hclog.Trace, true},
		{"bogus", hclog.Trace, false},
	}

	for _, test := range tests {
		t.Run(test.env, func(t *testing.T) {
			t.Setenv(EnvLog, test.env)
			got, gotJSON := globalLogLevel()
			if got != test.want {
				t.Errorf("wrong level %s; want %s", got, test.want)
			}
			if gotJSON != test.wantJSON {
				t.Errorf("wrong json flag %t; want %t", gotJSON, test.wantJSON)
			}
		})
	}
}

func TestIsDebugOrHigher(t *testing.T) {
	t.Setenv(EnvLog, "debug")
	if !IsDebugOrHigher() {
		t.Error("DEBUG should count as debug or higher")
	}
	t.Setenv(EnvLog, "info")
	if IsDebugOrHigher() {
		t.Error("INFO should not count as debug or higher")
	}
}

func TestNewHCLogger_logFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sdk.log")
	t.Setenv(EnvLog, "INFO")
	t.Setenv(EnvLogFile, logPath)

	l := newHCLogger("test")
	l.Info("hello from the logger")
	l.Debug("below the configured level")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	got := string(raw)
	if !strings.Contains(got, "hello from the logger") {
		t.Errorf("log file does not contain the info message:\n%s", got)
	}
	if strings.Contains(got, "below the configured level") {
		t.Errorf("log file contains a debug message at INFO level:\n%s", got)
	}
}
