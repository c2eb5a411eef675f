// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/quarry-build/quarry/launch"
	"github.com/quarry-build/quarry/lib/action"
	"github.com/quarry-build/quarry/lib/procinfo"
	"github.com/quarry-build/quarry/lib/version"
)

// RunConfig configures one worker run.
type RunConfig struct {
	// Input carries the handshake. Defaults to os.Stdin.
	Input io.Reader

	// Logger receives worker progress. Defaults to slog.Default().
	Logger *slog.Logger

	// Level, when set, is adjusted to the handshake's log level before
	// any work runs. Wire it to the handler the Logger was built with.
	Level *slog.LevelVar

	// Reporter delivers the result. Defaults to dialing the handshake's
	// callback address.
	Reporter Reporter
}

// Run executes one worker lifecycle: handshake, setup, execute, report.
// The returned error is the first failure of the lifecycle itself; a
// work execution error is reported to the launcher and also returned.
func Run(ctx context.Context, cfg RunConfig) error {
	input := cfg.Input
	if input == nil {
		input = os.Stdin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handshake, err := launch.ReadHandshake(input)
	if err != nil {
		return fmt.Errorf("worker bootstrap: %w", err)
	}

	if cfg.Level != nil {
		cfg.Level.Set(handshake.LogLevel.Slog())
	}
	logger.Info("handshake received",
		"work", handshake.Work.Name,
		"implementation", handshake.Work.ImplementationName(),
		"log_level", handshake.LogLevel.String(),
		"callback", handshake.Callback.String())

	// Replay the isolation structure. The resolved chain tells the
	// worker what each scope admits; logging it makes visibility
	// problems diagnosable from the worker's output alone.
	if structure := handshake.Work.ClassLoaderStructure; structure != nil {
		for _, scope := range structure.Resolve() {
			logger.Debug("resolved scope",
				"name", scope.Name,
				"classpath_entries", len(scope.Classpath))
		}
	}

	if handshake.PublishProcessInfo {
		deregister, err := register(handshake, logger)
		if err != nil {
			// Registration is advisory; the work still runs.
			logger.Warn("process registration failed", "error", err)
		} else {
			defer deregister()
		}
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = dialReporter{address: handshake.Callback}
	}

	execErr := execute(ctx, handshake, logger)

	result := Result{
		CallbackID: handshake.Callback.ID,
		WorkName:   handshake.Work.Name,
		Success:    execErr == nil,
	}
	if execErr != nil {
		result.Error = execErr.Error()
	}
	if err := reporter.Report(ctx, result); err != nil {
		if execErr != nil {
			return fmt.Errorf("reporting failed result (%v): %w", execErr, err)
		}
		return fmt.Errorf("reporting result: %w", err)
	}

	return execErr
}

// execute rehydrates and runs the work envelope.
func execute(ctx context.Context, handshake *launch.Handshake, logger *slog.Logger) error {
	live, err := action.Rehydrate(handshake.Work)
	if err != nil {
		return err
	}
	work, err := live.Implementation()
	if err != nil {
		return err
	}
	params, err := live.Params()
	if err != nil {
		return err
	}

	logger.Info("executing work", "name", live.DisplayName())
	if err := work.Execute(ctx, params); err != nil {
		return fmt.Errorf("executing %q: %w", live.DisplayName(), err)
	}
	logger.Info("work complete", "name", live.DisplayName())
	return nil
}

// register adds this process to the engine home's registry and returns
// the matching deregistration.
func register(handshake *launch.Handshake, logger *slog.Logger) (func(), error) {
	registry, err := procinfo.Open(handshake.EngineHome)
	if err != nil {
		return nil, err
	}

	record := procinfo.Record{
		DisplayName: handshake.Work.Name,
		PID:         os.Getpid(),
		CallbackID:  handshake.Callback.ID,
		StartedAt:   time.Now().UTC(),
	}
	if digest, executable, err := version.ComputeSelfHash(); err == nil {
		record.BinaryDigest = digest
		record.Executable = executable
	} else if executable, err := os.Executable(); err == nil {
		record.Executable = executable
	}

	if err := registry.Add(record); err != nil {
		return nil, err
	}

	return func() {
		if err := registry.Remove(record.PID); err != nil {
			logger.Warn("process deregistration failed", "error", err)
		}
	}, nil
}
