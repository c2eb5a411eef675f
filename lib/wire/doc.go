// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire provides the framed binary primitives shared by Quarry's
// worker handshake and the object graph codec.
//
// All framing is positional: streams carry no field tags, so writer and
// reader must agree on field order. Counts and length prefixes are
// big-endian uint32; strings are length-prefixed UTF-8; small integers
// are unsigned LEB128 varints; booleans are a single byte (0 or 1);
// binary blocks are length-prefixed bytes.
//
// Writers accumulate the first error and report it from every subsequent
// call, so callers can issue a sequence of writes and check once at the
// end. Readers fail fast: every read returns an error and short reads are
// reported via io.ReadFull semantics.
package wire
