// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// quarry-worker is the worker process entry point. It is started by the
// launcher (quarry-launch or an embedding engine), reads its complete
// configuration from stdin, executes the delegated work, and reports
// the outcome over the callback connection.
//
// The binary takes no configuration flags: everything arrives in the
// stdin handshake.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/quarry-build/quarry/lib/process"
	"github.com/quarry-build/quarry/lib/version"
	"github.com/quarry-build/quarry/worker"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("quarry-worker", pflag.ContinueOnError)

	// Handle --version before flag parsing to match other Quarry binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("quarry-worker")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The handler starts at info; the handshake's log level replaces it
	// before any work runs.
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return worker.Run(ctx, worker.RunConfig{
		Logger: logger,
		Level:  level,
	})
}
