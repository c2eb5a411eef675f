// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides BLAKE3 content hashing for binary files.
//
// Quarry records a content digest of the worker executable in each
// process registry entry. Launcher restarts and toolchain updates often
// leave the executable byte-identical even when its path changes;
// comparing digests tells the engine whether a pooled worker can be
// reused or must be relaunched with the new binary.
//
// The API surface is three functions:
//
//   - [HashFile] -- streams a file through BLAKE3, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation, used in registry records and
//     log output
//   - [ParseDigest] -- parses a hex-encoded digest string back to a
//     [32]byte array, validating length and encoding
//
// This package has no dependencies on other Quarry packages.
package binhash
