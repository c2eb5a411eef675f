// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package worker implements the worker process bootstrap: the receiving
// side of the launch handshake.
//
// A worker is started by the planner (package launch) with its
// configuration on stdin. Run reads the handshake, applies the log
// level, replays the isolation structure, registers the process if
// asked to, rehydrates the work envelope, executes it, and reports the
// outcome over the callback connection. The handshake is the only
// configuration channel; a worker that cannot read it exits without
// doing anything.
package worker
