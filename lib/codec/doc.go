// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Quarry's standard CBOR encoding configuration.
//
// Quarry uses three serialization formats with a clear boundary:
//
//   - The object graph codec (lib/serial) for work parameters and the
//     transportable action envelope: identity-preserving, session-scoped,
//     used only inside the launch handshake and worker callback.
//   - CBOR for internal state and control records: the worker process
//     registry on disk and the result messages a worker sends back on
//     its callback connection. These are plain value records with no
//     aliasing, so the graph codec's identity machinery buys nothing.
//   - YAML for the engine configuration file (lib/config).
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Quarry package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, so registry snapshots can be compared byte-for-byte.
//
// For buffer-oriented operations (registry files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the callback connection):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types serialized with this package carry `cbor` struct tags. They
// never interact with JSON or YAML tooling.
package codec
