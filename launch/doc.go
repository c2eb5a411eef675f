// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package launch plans and starts worker processes.
//
// The planner takes a launch descriptor (what to run, what the worker
// may see, where to call back) and turns it into a running process:
//
//  1. Probe the target runtime's capabilities, cached per executable.
//  2. Build the command line. Modern runtimes receive the application
//     classpath through a temporary argument file; legacy or
//     unprobeable runtimes get it injected as command-line options.
//  3. Start the process and write the handshake to its stdin. The
//     handshake is the single configuration channel: everything the
//     worker needs arrives in one framed stream before any work is
//     sent.
//
// The handshake wire format lives in this package too (WriteHandshake,
// ReadHandshake). The worker side reads it with the same code, so the
// field order is defined exactly once.
package launch
