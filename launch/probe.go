// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Capability describes what a target runtime supports.
type Capability int

const (
	// CapabilityUnknown means the probe could not determine the
	// runtime's version. The planner falls back to command-line
	// classpath injection, which every runtime accepts.
	CapabilityUnknown Capability = iota

	// CapabilityLegacy means the runtime predates argument files.
	CapabilityLegacy

	// CapabilityModern means the runtime accepts @file argument files.
	CapabilityModern
)

func (c Capability) String() string {
	switch c {
	case CapabilityLegacy:
		return "legacy"
	case CapabilityModern:
		return "modern"
	default:
		return "unknown"
	}
}

// CapabilityProbe determines a runtime executable's capability.
// Implementations never fail: an undeterminable runtime is reported as
// CapabilityUnknown and the launch proceeds on the conservative path.
type CapabilityProbe interface {
	Probe(ctx context.Context, executable string) Capability
}

// ExecProbeConfig configures an ExecProbe.
type ExecProbeConfig struct {
	// ModernVersion is the minimum major version that supports argument
	// files.
	ModernVersion int

	// Timeout bounds one probe invocation. Zero means 10 seconds.
	Timeout time.Duration

	// Logger receives probe results. Defaults to slog.Default().
	Logger *slog.Logger
}

// ExecProbe determines capability by running "<executable> -version"
// and parsing the reported major version. Results are cached per
// executable path for the probe's lifetime: the launcher probes each
// toolchain once, not once per launch.
type ExecProbe struct {
	modernVersion int
	timeout       time.Duration
	logger        *slog.Logger
	cache         sync.Map // executable path -> Capability
}

// NewExecProbe returns a probe for the given configuration.
func NewExecProbe(cfg ExecProbeConfig) *ExecProbe {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecProbe{
		modernVersion: cfg.ModernVersion,
		timeout:       timeout,
		logger:        logger,
	}
}

// Probe implements CapabilityProbe.
func (p *ExecProbe) Probe(ctx context.Context, executable string) Capability {
	if cached, ok := p.cache.Load(executable); ok {
		return cached.(Capability)
	}

	capability := p.probe(ctx, executable)
	p.cache.Store(executable, capability)
	return capability
}

func (p *ExecProbe) probe(ctx context.Context, executable string) Capability {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Runtimes print version banners to stderr, some to stdout.
	// CombinedOutput captures both.
	output, err := exec.CommandContext(probeCtx, executable, "-version").CombinedOutput()
	if err != nil {
		p.logger.Debug("capability probe failed",
			"executable", executable,
			"error", err)
		return CapabilityUnknown
	}

	major, err := parseMajorVersion(string(output))
	if err != nil {
		p.logger.Debug("capability probe output unparseable",
			"executable", executable,
			"error", err)
		return CapabilityUnknown
	}

	capability := CapabilityLegacy
	if major >= p.modernVersion {
		capability = CapabilityModern
	}
	p.logger.Debug("probed runtime capability",
		"executable", executable,
		"major_version", major,
		"capability", capability.String())
	return capability
}

// parseMajorVersion extracts the major version from a runtime's
// -version banner. It handles both modern banners (`version "11.0.2"`,
// major 11) and legacy ones (`version "1.8.0_292"`, major 8, where the
// leading 1 is an era prefix).
func parseMajorVersion(output string) (int, error) {
	start := strings.Index(output, `"`)
	if start < 0 {
		return 0, fmt.Errorf("no quoted version in banner %q", firstLine(output))
	}
	rest := output[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return 0, fmt.Errorf("unterminated version in banner %q", firstLine(output))
	}
	version := rest[:end]

	parts := strings.FieldsFunc(version, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty version string")
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parsing major version from %q: %w", version, err)
	}
	if major == 1 && len(parts) > 1 {
		// Era-prefixed scheme: "1.8" is major 8.
		major, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("parsing legacy major version from %q: %w", version, err)
		}
	}
	if major < 1 {
		return 0, fmt.Errorf("implausible major version %d in %q", major, version)
	}
	return major, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
