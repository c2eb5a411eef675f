// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Quarry.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Worker configures the worker runtime a launch targets.
	Worker WorkerConfig `yaml:"worker"`

	// Probe configures runtime capability detection.
	Probe ProbeConfig `yaml:"probe"`

	// Launch configures launch defaults.
	Launch LaunchConfig `yaml:"launch"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Worker *WorkerConfig `yaml:"worker,omitempty"`
	Probe  *ProbeConfig  `yaml:"probe,omitempty"`
	Launch *LaunchConfig `yaml:"launch,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Home is the engine home directory, the base for all Quarry data.
	// Workers receive it in the handshake; the process registry and
	// launch temp files live under it.
	Home string `yaml:"home"`

	// Bin is where Quarry binaries are installed. This provides hermetic
	// binary paths independent of user PATH. Contains: quarry-worker, etc.
	Bin string `yaml:"bin"`

	// Temp is where per-launch scratch files (argument files) are
	// created. Defaults to <home>/tmp.
	Temp string `yaml:"temp"`
}

// WorkerConfig configures the worker runtime a launch targets.
type WorkerConfig struct {
	// Executable is the runtime executable used to start worker
	// processes.
	Executable string `yaml:"executable"`

	// MainEntry is the entry point name handed to the runtime
	// (the bootstrap main class or equivalent).
	MainEntry string `yaml:"main_entry"`

	// BootstrapClasspath lists entries always appended to the
	// implementation classpath (the worker-side runtime services).
	BootstrapClasspath []string `yaml:"bootstrap_classpath"`
}

// ProbeConfig configures runtime capability detection.
type ProbeConfig struct {
	// ModernVersion is the minimum major runtime version that supports
	// argument files. Runtimes at or above it receive the classpath via
	// an argument file; older or unprobeable runtimes get command-line
	// injection.
	ModernVersion int `yaml:"modern_version"`

	// Timeout bounds a single capability probe invocation.
	// Default: 10s
	Timeout string `yaml:"timeout"`
}

// LaunchConfig configures launch defaults.
type LaunchConfig struct {
	// LogLevel is the default worker log level name when a launch
	// descriptor leaves it unset ("debug", "info", "warn", "error",
	// "quiet"). Default: info
	LogLevel string `yaml:"log_level"`

	// PublishProcessInfo enables worker self-registration in the
	// process registry. Default: false (development), true (production)
	PublishProcessInfo bool `yaml:"publish_process_info"`

	// CallbackHosts lists the candidate host addresses workers use to
	// reach back to the launcher, in try order. Default: 127.0.0.1
	CallbackHosts []string `yaml:"callback_hosts"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultHome := filepath.Join(homeDir, ".cache", "quarry")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Home: defaultHome,
			Bin:  filepath.Join(defaultHome, "bin"),
			Temp: filepath.Join(defaultHome, "tmp"),
		},
		Worker: WorkerConfig{
			Executable: "java",
			MainEntry:  "quarry.worker.Main",
		},
		Probe: ProbeConfig{
			ModernVersion: 9,
			Timeout:       "10s",
		},
		Launch: LaunchConfig{
			LogLevel:           "info",
			PublishProcessInfo: false,
			CallbackHosts:      []string{"127.0.0.1"},
		},
	}
}

// Load loads configuration from the QUARRY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if QUARRY_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("QUARRY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("QUARRY_CONFIG environment variable not set; " +
			"set it to the path of your quarry.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production default: workers always register themselves so
		// operators can enumerate them.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Launch: &LaunchConfig{
					PublishProcessInfo: true,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Home != "" {
			c.Paths.Home = overrides.Paths.Home
		}
		if overrides.Paths.Bin != "" {
			c.Paths.Bin = overrides.Paths.Bin
		}
		if overrides.Paths.Temp != "" {
			c.Paths.Temp = overrides.Paths.Temp
		}
	}

	if overrides.Worker != nil {
		if overrides.Worker.Executable != "" {
			c.Worker.Executable = overrides.Worker.Executable
		}
		if overrides.Worker.MainEntry != "" {
			c.Worker.MainEntry = overrides.Worker.MainEntry
		}
		if len(overrides.Worker.BootstrapClasspath) > 0 {
			c.Worker.BootstrapClasspath = overrides.Worker.BootstrapClasspath
		}
	}

	if overrides.Probe != nil {
		if overrides.Probe.ModernVersion != 0 {
			c.Probe.ModernVersion = overrides.Probe.ModernVersion
		}
		if overrides.Probe.Timeout != "" {
			c.Probe.Timeout = overrides.Probe.Timeout
		}
	}

	if overrides.Launch != nil {
		if overrides.Launch.LogLevel != "" {
			c.Launch.LogLevel = overrides.Launch.LogLevel
		}
		// PublishProcessInfo is a bool, so we always apply it from overrides.
		c.Launch.PublishProcessInfo = overrides.Launch.PublishProcessInfo
		if len(overrides.Launch.CallbackHosts) > 0 {
			c.Launch.CallbackHosts = overrides.Launch.CallbackHosts
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"QUARRY_HOME": c.Paths.Home,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Home = expandVars(c.Paths.Home, vars)
	vars["QUARRY_HOME"] = c.Paths.Home // Update for dependent paths.

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.Temp = expandVars(c.Paths.Temp, vars)
	c.Worker.Executable = expandVars(c.Worker.Executable, vars)
	for i, entry := range c.Worker.BootstrapClasspath {
		c.Worker.BootstrapClasspath[i] = expandVars(entry, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Home == "" {
		errs = append(errs, fmt.Errorf("paths.home is required"))
	}

	if c.Worker.Executable == "" {
		errs = append(errs, fmt.Errorf("worker.executable is required"))
	}
	if c.Worker.MainEntry == "" {
		errs = append(errs, fmt.Errorf("worker.main_entry is required"))
	}

	if c.Probe.ModernVersion < 1 {
		errs = append(errs, fmt.Errorf("probe.modern_version must be positive, got %d", c.Probe.ModernVersion))
	}
	if _, err := c.ProbeTimeout(); err != nil {
		errs = append(errs, err)
	}

	logLevels := []string{"debug", "info", "warn", "error", "quiet"}
	if !contains(logLevels, c.Launch.LogLevel) {
		errs = append(errs, fmt.Errorf("launch.log_level must be one of: %v", logLevels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ProbeTimeout parses the probe timeout duration.
func (c *Config) ProbeTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Probe.Timeout)
	if err != nil {
		return 0, fmt.Errorf("probe.timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("probe.timeout must be positive, got %s", timeout)
	}
	return timeout, nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Home,
		c.Paths.Bin,
		c.Paths.Temp,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// BinaryPath returns the full path to a Quarry binary.
// It looks in Paths.Bin first, then falls back to exec.LookPath.
// This provides hermetic binary resolution when Bin is configured.
func (c *Config) BinaryPath(name string) (string, error) {
	// If Bin is configured, look there first.
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	// Fall back to PATH lookup.
	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
