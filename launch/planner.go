// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/quarry-build/quarry/lib/addr"
	"github.com/quarry-build/quarry/lib/binhash"
	"github.com/quarry-build/quarry/lib/procinfo"
)

// Config configures a Planner.
type Config struct {
	// WorkerExecutable is the runtime executable worker processes are
	// started with.
	WorkerExecutable string

	// MainEntry is the entry point name passed to the runtime.
	MainEntry string

	// TempDir is where per-launch argument files are created. Must
	// exist.
	TempDir string

	// Probe determines the runtime's capability. Required.
	Probe CapabilityProbe

	// CallbackPort is the TCP port the launcher listens on for worker
	// callback connections.
	CallbackPort int

	// CallbackHosts lists the candidate host addresses workers try, in
	// order.
	CallbackHosts []string

	// Registry records launched workers when a descriptor enables
	// process info publication. Optional; nil disables launcher-side
	// recording.
	Registry *procinfo.Registry

	// Logger receives launch progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// Planner turns launch descriptors into running worker processes.
type Planner struct {
	executable    string
	mainEntry     string
	probe         CapabilityProbe
	callbackPort  int
	callbackHosts []string
	registry      *procinfo.Registry
	logger        *slog.Logger
	temp          *tempAllocator
}

// New creates a Planner.
func New(cfg Config) (*Planner, error) {
	if cfg.WorkerExecutable == "" {
		return nil, fmt.Errorf("planner config: worker executable not set")
	}
	if cfg.MainEntry == "" {
		return nil, fmt.Errorf("planner config: main entry not set")
	}
	if cfg.TempDir == "" {
		return nil, fmt.Errorf("planner config: temp directory not set")
	}
	if cfg.Probe == nil {
		return nil, fmt.Errorf("planner config: capability probe not set")
	}
	if len(cfg.CallbackHosts) == 0 {
		return nil, fmt.Errorf("planner config: no callback hosts")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		executable:    cfg.WorkerExecutable,
		mainEntry:     cfg.MainEntry,
		probe:         cfg.Probe,
		callbackPort:  cfg.CallbackPort,
		callbackHosts: cfg.CallbackHosts,
		registry:      cfg.Registry,
		logger:        logger,
		temp:          newTempAllocator(cfg.TempDir),
	}, nil
}

// Launch starts one worker process for the descriptor. On return the
// process is running and has received its complete handshake; the
// caller owns the returned Process and must eventually call Wait (or
// Kill) to release it.
func (p *Planner) Launch(ctx context.Context, d *Descriptor) (*Process, error) {
	callback, err := addr.NewMultiAddress(p.callbackPort, p.callbackHosts...)
	if err != nil {
		return nil, fmt.Errorf("launching %q: %w", d.DisplayName, err)
	}

	// Assembling the handshake first surfaces descriptor and encoding
	// errors before any process exists.
	handshake, err := NewHandshake(d, callback)
	if err != nil {
		return nil, fmt.Errorf("launching %q: %w", d.DisplayName, err)
	}

	capability := p.probe.Probe(ctx, p.executable)
	args, argfilePath, err := p.buildArguments(d, capability)
	if err != nil {
		return nil, fmt.Errorf("launching %q: %w", d.DisplayName, err)
	}

	p.logger.Info("launching worker",
		"name", d.DisplayName,
		"executable", p.executable,
		"strategy", classpathStrategy(capability),
		"callback", callback.String())

	cmd := exec.Command(p.executable, args...)
	// Workers get their own process group so killing one does not
	// signal the launcher, and vice versa.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		removeArgfile(argfilePath)
		return nil, fmt.Errorf("launching %q: creating stdin pipe: %w", d.DisplayName, err)
	}

	if err := cmd.Start(); err != nil {
		removeArgfile(argfilePath)
		return nil, fmt.Errorf("launching %q: starting %s: %w", d.DisplayName, p.executable, err)
	}

	process := &Process{
		DisplayName: d.DisplayName,
		PID:         cmd.Process.Pid,
		Callback:    callback,
		cmd:         cmd,
		argfilePath: argfilePath,
		registry:    p.registry,
	}

	// The handshake is the launch: a worker that never receives it is
	// useless, so a write failure aborts the whole attempt.
	if err := WriteHandshake(stdin, handshake); err != nil {
		stdin.Close()
		process.Kill()
		return nil, fmt.Errorf("launching %q: %w", d.DisplayName, err)
	}
	// Closing stdin marks the configuration stream complete. The worker
	// reads exactly the handshake fields and then sees EOF.
	if err := stdin.Close(); err != nil {
		process.Kill()
		return nil, fmt.Errorf("launching %q: closing handshake stream: %w", d.DisplayName, err)
	}

	if d.PublishProcessInfo && p.registry != nil {
		process.registered = true
		p.record(d, process)
	}

	p.logger.Info("worker launched", "name", d.DisplayName, "pid", process.PID)
	return process, nil
}

// buildArguments builds the runtime command line for the probed
// capability. Modern runtimes get the application classpath through an
// argument file; everything else gets command-line injection.
func (p *Planner) buildArguments(d *Descriptor, capability Capability) (args []string, argfilePath string, err error) {
	if len(d.ApplicationClasspath) == 0 {
		return []string{p.mainEntry, d.DisplayName}, "", nil
	}

	if capability == CapabilityModern {
		argfilePath = p.temp.allocate("worker-args", ".txt")
		if err := writeArgumentFile(argfilePath, d.ApplicationClasspath); err != nil {
			return nil, "", err
		}
		return []string{"@" + argfilePath, p.mainEntry, d.DisplayName}, argfilePath, nil
	}

	joined := strings.Join(d.ApplicationClasspath, string(os.PathListSeparator))
	return []string{"-cp", joined, p.mainEntry, d.DisplayName}, "", nil
}

// record registers the launched worker in the process registry. Failure
// to record is logged, not fatal: the worker is already running and the
// registry is advisory.
func (p *Planner) record(d *Descriptor, process *Process) {
	record := procinfo.Record{
		DisplayName: d.DisplayName,
		PID:         process.PID,
		Executable:  p.executable,
		CallbackID:  process.Callback.ID,
		StartedAt:   time.Now().UTC(),
	}
	if digest, err := binhash.HashFile(p.executable); err == nil {
		record.BinaryDigest = binhash.FormatDigest(digest)
	} else {
		p.logger.Warn("hashing worker executable failed",
			"executable", p.executable, "error", err)
	}
	if err := p.registry.Add(record); err != nil {
		p.logger.Warn("recording worker in process registry failed",
			"name", d.DisplayName, "pid", process.PID, "error", err)
	}
}

func classpathStrategy(capability Capability) string {
	if capability == CapabilityModern {
		return "argument-file"
	}
	return "command-line"
}

// Process is a launched worker. Wait must be called exactly once to
// reap the process and release its launch-scoped resources (argument
// file, registry entry).
type Process struct {
	DisplayName string
	PID         int
	Callback    addr.MultiAddress

	cmd         *exec.Cmd
	argfilePath string
	registry    *procinfo.Registry
	registered  bool

	waitOnce sync.Once
	waitErr  error
}

// Wait blocks until the worker exits, then removes the launch's
// argument file and registry entry. The argument file must outlive the
// process: the runtime reads it at startup, and deleting it earlier
// races a slow-starting worker.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		removeArgfile(p.argfilePath)
		if p.registered && p.registry != nil {
			if err := p.registry.Remove(p.PID); err != nil {
				p.waitErr = fmt.Errorf("removing registry entry: %w", err)
			}
		}
	})
	return p.waitErr
}

// Kill forcibly terminates the worker's process group and reaps it.
func (p *Process) Kill() {
	syscall.Kill(-p.PID, syscall.SIGKILL)
	p.Wait()
}

func removeArgfile(path string) {
	if path != "" {
		os.Remove(path)
	}
}
