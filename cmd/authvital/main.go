// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/authvital/sdk-go/internal/command"
	"github.com/authvital/sdk-go/internal/logging"
	"github.com/authvital/sdk-go/internal/sdkconfig"
	"github.com/authvital/sdk-go/internal/tracing"
	"github.com/authvital/sdk-go/internal/webbrowser"
	"github.com/authvital/sdk-go/version"
)

// Ui is the cli.Ui used for communicating to the outside world.
var Ui cli.Ui

func init() {
	Ui = &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logging.RedirectStdLog()

	ctx, err := tracing.OpenTelemetryInit(context.Background())
	if err != nil {
		// This can only fail when telemetry was explicitly requested.
		Ui.Error(fmt.Sprintf("Could not initialize telemetry: %s", err))
		Ui.Error(fmt.Sprintf("Unset environment variable %s if you don't intend to collect telemetry.", tracing.OTELExporterEnvVar))
		return 1
	}
	defer tracing.ForceFlush(5 * time.Second)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// At minimum, we emit a span covering the entire command execution.
	ctx, span := tracing.Tracer().Start(ctx, "authvital")
	defer span.End()

	log.Printf("[INFO] AuthVital SDK version: %s", version.String())
	if logging.IsDebugOrHigher() {
		for _, depMod := range version.InterestingDependencies() {
			log.Printf("[DEBUG] using %s %s", depMod.Path, depMod.Version)
		}
	}
	log.Printf("[INFO] Go runtime version: %s", runtime.Version())
	log.Printf("[INFO] CLI args: %#v", os.Args)

	fsys := afero.NewOsFs()
	config, err := sdkconfig.LoadConfig(fsys)
	if err != nil {
		Ui.Error(fmt.Sprintf("Error loading the configuration: %s", err))
		return 1
	}
	if err := config.Validate(); err != nil {
		Ui.Error(fmt.Sprintf("There are some problems with the configuration:\n%s", err))
		return 1
	}

	meta := command.Meta{
		Ui:      Ui,
		Config:  config,
		Fs:      fsys,
		Browser: webbrowser.FromEnv(),
		Context: ctx,
	}

	cliRunner := &cli.CLI{
		Name:       "authvital",
		Args:       os.Args[1:],
		Commands:   initCommands(meta),
		HelpFunc:   cli.BasicHelpFunc("authvital"),
		HelpWriter: os.Stdout,
	}

	exitCode, err := cliRunner.Run()
	if err != nil {
		Ui.Error(fmt.Sprintf("Error executing CLI: %s", err.Error()))
		return 1
	}
	return exitCode
}
