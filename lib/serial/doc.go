// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package serial implements Quarry's identity-preserving object graph
// codec. It is the transport format for worker action parameters and the
// embedded work descriptor in the launch handshake: arbitrary application
// value graphs — including shared references and cycles — cross the
// process boundary without per-type serialization code.
//
// # Sessions
//
// Encoding and decoding are session-scoped. An Encoder is one encode
// session; a Decoder is one decode session. A session owns an identity
// registry mapping pointer identity to a small integer id (encode side)
// or id to instance (decode side). Identity equality is only meaningful
// within one session, so sessions are never shared between unrelated
// operations and are not safe for concurrent use. Marshal and Unmarshal
// create a one-shot session per call.
//
// # Wire grammar
//
// Values are framed with the primitives of lib/wire and encoded according
// to the declared type of the slot being written:
//
//   - booleans: one byte; integers: zigzag varints; unsigned: varints;
//     floats: 8-byte big-endian IEEE 754; strings and []byte:
//     length-prefixed.
//   - slices and maps: varint length+1, where 0 means nil, followed by
//     the elements. Map entries with string keys are written in sorted
//     key order so equal values always produce equal bytes.
//   - structs: each exported field in declared order. Field order is part
//     of the wire contract; the decoder reads fields through the same
//     cached per-type descriptor list.
//   - pointers: the identity path. 0 is nil; a fresh object writes the
//     next id, its registered type name, then its pointee; a repeated
//     object writes only its id (a back-reference).
//   - interfaces: an empty type name for nil, otherwise the concrete
//     type's registered name followed by the concrete value.
//
// On decode, a fresh instance is registered in the session's read table
// before its fields are populated. A field that refers back to the object
// currently being decoded therefore resolves to that same instance — this
// is what makes cyclic graphs terminate and aliasing survive transport.
//
// # Registries
//
// Types that appear behind pointers or interfaces must be registered with
// Register or RegisterName, because Go cannot resolve a type from its
// name at runtime. RegisterCodec installs a specialized codec for a type;
// anything without one is handled by the generic field-reflecting codec,
// whose per-type field descriptors are computed once and cached.
package serial
