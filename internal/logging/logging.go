// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package logging configures the SDK's hclog-based logging from the
// environment.
//
// Logging is disabled unless AUTHVITAL_LOG is set, so that embedding the SDK
// in an application does not produce any output the application didn't ask
// for.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLog is the environment variable selecting the log level. Accepted
	// values are TRACE, DEBUG, INFO, WARN, ERROR and OFF, or JSON to produce
	// TRACE level output in JSON format.
	EnvLog = "AUTHVITAL_LOG"

	// EnvLogFile is the environment variable naming a file to append log
	// output to instead of stderr.
	EnvLogFile = "AUTHVITAL_LOG_PATH"
)

// ValidLevels are the log level names accepted in EnvLog.
var ValidLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

var (
	// logger is the global hclog logger
	logger hclog.Logger

	// logWriter is a global writer for logs, to be used with the std log package
	logWriter io.Writer
)

func init() {
	logger = newHCLogger("")
	logWriter = logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})
}

// HCLogger returns the default global hclog logger.
func HCLogger() hclog.Logger {
	return logger
}

// LogOutput returns a writer that parses "[LEVEL] message" lines written by
// the standard library log package and forwards them to the global logger
// at the inferred level.
func LogOutput() io.Writer {
	return logWriter
}

// RedirectStdLog points the standard library log package at the global
// logger. Only package main should call this; a library must not take over
// the process-wide log output.
func RedirectStdLog() {
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(logWriter)
}

// NewLogger returns a named sub-logger of the global logger.
func NewLogger(name string) hclog.Logger {
	return logger.Named(name)
}

// CurrentLogLevel returns the current log level string based the environment vars
func CurrentLogLevel() string {
	ll, _ := globalLogLevel()
	return strings.ToUpper(ll.String())
}

// IsDebugOrHigher returns whether or not the current log level is debug or trace
func IsDebugOrHigher() bool {
	level, _ := globalLogLevel()
	return level == hclog.Debug || level == hclog.Trace
}

func newHCLogger(name string) hclog.Logger {
	logOutput := io.Writer(os.Stderr)
	logLevel, json := globalLogLevel()

	if logPath := os.Getenv(EnvLogFile); logPath != "" {
		f, err := os.OpenFile(logPath, syscall.O_CREAT|syscall.O_RDWR|syscall.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		} else {
			logOutput = f
		}
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:              name,
		Level:             logLevel,
		Output:            logOutput,
		IndependentLevels: true,
		JSONFormat:        json,
	})
}

// globalLogLevel returns the log level selected by the environment and
// whether JSON output was requested.
func globalLogLevel() (hclog.Level, bool) {
	var json bool
	envLevel := strings.ToUpper(os.Getenv(EnvLog))
	if envLevel == "" {
		return hclog.Off, false
	}
	if envLevel == "JSON" {
		json = true
	}
	return parseLogLevel(envLevel), json
}

func parseLogLevel(envLevel string) hclog.Level {
	if envLevel == "" {
		return hclog.Off
	}
	if envLevel == "JSON" {
		envLevel = "TRACE"
	}

	logLevel := hclog.Trace
	if isValidLogLevel(envLevel) {
		logLevel = hclog.LevelFromString(envLevel)
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid log level: %q. Defaulting to level: TRACE. Valid levels are: %+v\n",
			envLevel, ValidLevels)
	}

	return logLevel
}

func isValidLogLevel(level string) bool {
	for _, l := range ValidLevels {
		if level == l {
			return true
		}
	}

	return false
}
