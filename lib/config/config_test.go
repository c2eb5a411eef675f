// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Worker.Executable != "java" {
		t.Errorf("expected executable=java, got %s", cfg.Worker.Executable)
	}

	if cfg.Probe.ModernVersion != 9 {
		t.Errorf("expected modern_version=9, got %d", cfg.Probe.ModernVersion)
	}

	if cfg.Launch.PublishProcessInfo {
		t.Error("expected publish_process_info=false for development")
	}
}

func TestLoad_RequiresQuarryConfig(t *testing.T) {
	// Save and restore QUARRY_CONFIG.
	origConfig := os.Getenv("QUARRY_CONFIG")
	defer os.Setenv("QUARRY_CONFIG", origConfig)

	// Unset QUARRY_CONFIG - Load() should fail.
	os.Unsetenv("QUARRY_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when QUARRY_CONFIG not set, got nil")
	}

	expectedMsg := "QUARRY_CONFIG environment variable not set"
	if err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithQuarryConfig(t *testing.T) {
	// Save and restore QUARRY_CONFIG.
	origConfig := os.Getenv("QUARRY_CONFIG")
	defer os.Setenv("QUARRY_CONFIG", origConfig)

	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quarry.yaml")

	configContent := `
environment: staging
paths:
  home: /test/home
worker:
  executable: /opt/jdk/bin/java
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Set QUARRY_CONFIG and load.
	os.Setenv("QUARRY_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Paths.Home != "/test/home" {
		t.Errorf("expected home=/test/home, got %s", cfg.Paths.Home)
	}
}

func TestLoadFile(t *testing.T) {
	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quarry.yaml")

	configContent := `
environment: staging

paths:
  home: /custom/home

worker:
  executable: /custom/bin/java
  main_entry: worker.CustomMain
  bootstrap_classpath:
    - /custom/lib/worker.jar

probe:
  modern_version: 11
  timeout: 5s

launch:
  log_level: warn
  publish_process_info: true
  callback_hosts:
    - 10.0.0.1
    - 127.0.0.1
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Paths.Home != "/custom/home" {
		t.Errorf("expected home=/custom/home, got %s", cfg.Paths.Home)
	}

	if cfg.Worker.Executable != "/custom/bin/java" {
		t.Errorf("expected executable=/custom/bin/java, got %s", cfg.Worker.Executable)
	}

	if cfg.Worker.MainEntry != "worker.CustomMain" {
		t.Errorf("expected main_entry=worker.CustomMain, got %s", cfg.Worker.MainEntry)
	}

	if cfg.Probe.ModernVersion != 11 {
		t.Errorf("expected modern_version=11, got %d", cfg.Probe.ModernVersion)
	}

	if cfg.Launch.LogLevel != "warn" {
		t.Errorf("expected log_level=warn, got %s", cfg.Launch.LogLevel)
	}

	if !cfg.Launch.PublishProcessInfo {
		t.Error("expected publish_process_info=true")
	}

	if len(cfg.Launch.CallbackHosts) != 2 || cfg.Launch.CallbackHosts[0] != "10.0.0.1" {
		t.Errorf("callback_hosts: %v", cfg.Launch.CallbackHosts)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quarry.yaml")

	configContent := `
environment: production

paths:
  home: /default/home

launch:
  log_level: debug
  publish_process_info: false

production:
  paths:
    home: /prod/home
  launch:
    log_level: info
    publish_process_info: true
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// Production overrides should be applied.
	if cfg.Paths.Home != "/prod/home" {
		t.Errorf("expected home=/prod/home, got %s", cfg.Paths.Home)
	}

	if cfg.Launch.LogLevel != "info" {
		t.Errorf("expected log_level=info, got %s", cfg.Launch.LogLevel)
	}

	if !cfg.Launch.PublishProcessInfo {
		t.Error("expected publish_process_info=true from production override")
	}
}

func TestProductionDefaultsPublishProcessInfo(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quarry.yaml")

	// Production with no explicit production section: workers must
	// still self-register.
	configContent := `
environment: production
paths:
  home: /prod/home
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !cfg.Launch.PublishProcessInfo {
		t.Error("production should default publish_process_info to true")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Verify that environment variables do NOT override config file values.
	// The config file is the single source of truth for deterministic configuration.

	// Save and restore env vars.
	origHome := os.Getenv("QUARRY_HOME")
	origEnv := os.Getenv("QUARRY_ENVIRONMENT")
	defer func() {
		os.Setenv("QUARRY_HOME", origHome)
		os.Setenv("QUARRY_ENVIRONMENT", origEnv)
	}()

	// Set env vars that should be ignored.
	os.Setenv("QUARRY_HOME", "/env/home")
	os.Setenv("QUARRY_ENVIRONMENT", "staging")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "quarry.yaml")

	configContent := `
environment: development
paths:
  home: /file/home
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// File values should be used, NOT env vars.
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}

	if cfg.Paths.Home != "/file/home" {
		t.Errorf("expected home=/file/home from file, got %s (env vars should not override)", cfg.Paths.Home)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/quarry",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/quarry",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty home path",
			modify: func(c *Config) {
				c.Paths.Home = ""
			},
			wantErr: true,
		},
		{
			name: "empty executable",
			modify: func(c *Config) {
				c.Worker.Executable = ""
			},
			wantErr: true,
		},
		{
			name: "non-positive modern version",
			modify: func(c *Config) {
				c.Probe.ModernVersion = 0
			},
			wantErr: true,
		},
		{
			name: "unparseable probe timeout",
			modify: func(c *Config) {
				c.Probe.Timeout = "soon"
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Launch.LogLevel = "loud"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProbeTimeout(t *testing.T) {
	cfg := Default()
	timeout, err := cfg.ProbeTimeout()
	if err != nil {
		t.Fatalf("ProbeTimeout: %v", err)
	}
	if timeout != 10*time.Second {
		t.Errorf("default probe timeout = %s, want 10s", timeout)
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Home = filepath.Join(tmpDir, "quarry")
	cfg.Paths.Bin = filepath.Join(cfg.Paths.Home, "bin")
	cfg.Paths.Temp = filepath.Join(cfg.Paths.Home, "tmp")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	// Verify directories were created.
	for _, path := range []string{cfg.Paths.Home, cfg.Paths.Bin, cfg.Paths.Temp} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
