// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Quarry
// binaries. These functions centralize the two legitimate raw I/O
// patterns that exist before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// All other output in Quarry binaries goes through the structured
// logger or, for the launcher CLI, explicit stdout writes.
package process
