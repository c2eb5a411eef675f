// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information and binary
// staleness checks for Quarry binaries.
//
// # Build information
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs.
//
// Formatting functions produce human-readable version strings:
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-02-10T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Short] -- just the version number
//   - [Commit] -- just the git SHA
//
// # Binary staleness
//
// Worker registry entries record a content digest of the executable
// each worker was launched with. [BinaryChanged] compares a desired
// executable path against such a recorded digest, telling the launcher
// whether a registered worker still runs the current binary or must be
// relaunched. [ComputeSelfHash] returns the digest of the currently
// running binary, used when a process records itself.
package version
