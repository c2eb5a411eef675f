// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package procinfo maintains the on-disk registry of live worker
// processes under an engine home.
//
// When a launch descriptor enables process info publication, the worker
// registers itself after its handshake completes and deregisters on
// clean shutdown. Operators and the engine use the registry to
// enumerate workers that outlive their launcher (crashed builds, leaked
// daemons) and to decide whether a pooled worker still runs the current
// binary (see lib/version.BinaryChanged).
//
// The registry is a single zstd-compressed CBOR file at
// <home>/workers/registry.bin. Every mutation rewrites the whole file
// via write-to-temp-then-rename, so readers never observe a partial
// registry. Entries for dead PIDs are pruned on every load; a worker
// killed with SIGKILL never gets to deregister itself.
package procinfo
