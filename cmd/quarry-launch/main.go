// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// quarry-launch starts one worker process for a unit of work and waits
// for its result.
//
// Usage:
//
//	quarry-launch --implementation <name> [flags]
//
// The worker runtime, entry point, and launch defaults come from the
// configuration file (QUARRY_CONFIG or --config). Flags describe the
// individual launch: classpath, shared packages, the work
// implementation name, and its parameters.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/quarry-build/quarry/launch"
	"github.com/quarry-build/quarry/lib/action"
	"github.com/quarry-build/quarry/lib/codec"
	"github.com/quarry-build/quarry/lib/config"
	"github.com/quarry-build/quarry/lib/isolation"
	"github.com/quarry-build/quarry/lib/process"
	"github.com/quarry-build/quarry/lib/procinfo"
	"github.com/quarry-build/quarry/lib/serial"
	"github.com/quarry-build/quarry/lib/version"
	"github.com/quarry-build/quarry/worker"
)

// resultTimeout bounds how long the launcher waits for the worker's
// callback after the process has exited.
const resultTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath     string
		displayName    string
		classpath      []string
		sharedPackages []string
		implClasspath  []string
		implementation string
		params         []string
		logLevelName   string
		publishInfo    bool
	)

	flagSet := pflag.NewFlagSet("quarry-launch", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to quarry.yaml (default: QUARRY_CONFIG)")
	flagSet.StringVar(&displayName, "name", "", "display name for the launch (default: derived from the implementation)")
	flagSet.StringSliceVar(&classpath, "classpath", nil, "application classpath entry (repeatable)")
	flagSet.StringSliceVar(&sharedPackages, "shared-package", nil, "package pattern shared into the work's scope (repeatable)")
	flagSet.StringSliceVar(&implClasspath, "impl-classpath", nil, "implementation classpath entry (repeatable)")
	flagSet.StringVar(&implementation, "implementation", "", "work implementation name (required)")
	flagSet.StringSliceVar(&params, "param", nil, "work parameter as key=value (repeatable)")
	flagSet.StringVar(&logLevelName, "log-level", "", "worker log level (default: from config)")
	flagSet.BoolVar(&publishInfo, "publish-info", false, "register the worker in the process registry")

	// Handle --version before flag parsing to match other Quarry binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("quarry-launch")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if implementation == "" {
		return fmt.Errorf("--implementation is required")
	}
	if displayName == "" {
		displayName = "worker for " + implementation
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	if logLevelName == "" {
		logLevelName = cfg.Launch.LogLevel
	}
	logLevel, err := launch.ParseLogLevel(logLevelName)
	if err != nil {
		return err
	}
	if !flagSet.Changed("publish-info") {
		publishInfo = cfg.Launch.PublishProcessInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	descriptor, err := buildDescriptor(cfg, descriptorInputs{
		displayName:    displayName,
		classpath:      classpath,
		sharedPackages: sharedPackages,
		implClasspath:  implClasspath,
		implementation: implementation,
		params:         params,
		logLevel:       logLevel,
		publishInfo:    publishInfo,
	})
	if err != nil {
		return err
	}

	return launchAndWait(ctx, cfg, descriptor, logger)
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type descriptorInputs struct {
	displayName    string
	classpath      []string
	sharedPackages []string
	implClasspath  []string
	implementation string
	params         []string
	logLevel       launch.LogLevel
	publishInfo    bool
}

// buildDescriptor assembles the launch descriptor: the scope chain from
// the classpath flags, the parameter map graph-encoded into the work
// envelope.
func buildDescriptor(cfg *config.Config, in descriptorInputs) (*launch.Descriptor, error) {
	implClasspath := append(in.implClasspath, cfg.Worker.BootstrapClasspath...)

	structure := isolation.NewHierarchy(isolation.Scope{
		Name:      "system",
		Classpath: in.classpath,
	}).WithChild(isolation.Scope{
		Name:            "filter",
		VisiblePackages: in.sharedPackages,
	}).WithChild(isolation.Scope{
		Name:      "implementation",
		Classpath: implClasspath,
	})

	parameters := map[string]string{}
	for _, pair := range in.params {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("--param %q is not key=value", pair)
		}
		parameters[key] = value
	}
	serialized, err := serial.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encoding work parameters: %w", err)
	}

	return &launch.Descriptor{
		DisplayName:             in.displayName,
		ApplicationClasspath:    in.classpath,
		SharedPackages:          in.sharedPackages,
		ImplementationClasspath: implClasspath,
		LogLevel:                in.logLevel,
		PublishProcessInfo:      in.publishInfo,
		EngineHome:              cfg.Paths.Home,
		Work: &action.TransportableSpec{
			Name:                 in.displayName,
			Impl:                 in.implementation,
			SerializedParameters: serialized,
			ClassLoaderStructure: structure,
		},
	}, nil
}

// launchAndWait starts the callback listener, launches the worker, and
// waits for both the result message and process exit.
func launchAndWait(ctx context.Context, cfg *config.Config, descriptor *launch.Descriptor, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("opening callback listener: %w", err)
	}
	defer listener.Close()
	callbackPort := listener.Addr().(*net.TCPAddr).Port

	timeout, err := cfg.ProbeTimeout()
	if err != nil {
		return err
	}
	probe := launch.NewExecProbe(launch.ExecProbeConfig{
		ModernVersion: cfg.Probe.ModernVersion,
		Timeout:       timeout,
		Logger:        logger,
	})

	var registry *procinfo.Registry
	if descriptor.PublishProcessInfo {
		if registry, err = procinfo.Open(cfg.Paths.Home); err != nil {
			return err
		}
	}

	planner, err := launch.New(launch.Config{
		WorkerExecutable: cfg.Worker.Executable,
		MainEntry:        cfg.Worker.MainEntry,
		TempDir:          cfg.Paths.Temp,
		Probe:            probe,
		CallbackPort:     callbackPort,
		CallbackHosts:    cfg.Launch.CallbackHosts,
		Registry:         registry,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	results := make(chan worker.Result, 1)
	go acceptResult(listener, logger, results)

	proc, err := planner.Launch(ctx, descriptor)
	if err != nil {
		return err
	}

	waitErr := proc.Wait()

	select {
	case result := <-results:
		if result.CallbackID != proc.Callback.ID {
			return fmt.Errorf("result callback id %q does not match launch %q", result.CallbackID, proc.Callback.ID)
		}
		if !result.Success {
			return fmt.Errorf("work %q failed: %s", result.WorkName, result.Error)
		}
		fmt.Printf("work %q succeeded (worker pid %d)\n", result.WorkName, proc.PID)
	case <-time.After(resultTimeout):
		if waitErr != nil {
			return fmt.Errorf("worker exited without reporting: %w", waitErr)
		}
		return fmt.Errorf("worker exited without reporting a result")
	case <-ctx.Done():
		proc.Kill()
		return ctx.Err()
	}

	return waitErr
}

// acceptResult accepts callback connections until one delivers a
// decodable result message.
func acceptResult(listener net.Listener, logger *slog.Logger, results chan<- worker.Result) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		var result worker.Result
		if err := codec.NewDecoder(conn).Decode(&result); err != nil {
			logger.Warn("undecodable callback message", "error", err)
			conn.Close()
			continue
		}
		conn.Close()
		results <- result
		return
	}
}
