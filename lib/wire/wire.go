// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxStringLength bounds a single length-prefixed string. Classpath
// entries, package patterns, and paths are far below this; anything
// larger indicates a corrupt or hostile stream.
const maxStringLength = 1 * 1024 * 1024

// maxBinaryLength bounds a single length-prefixed binary block. Serialized
// work descriptors for large parameter graphs stay well under this.
const maxBinaryLength = 64 * 1024 * 1024

// maxListCount bounds a list count. No launch carries a million classpath
// entries; the guard keeps a corrupt count from allocating unbounded
// memory before the first element read fails.
const maxListCount = 1 << 20

// Writer writes framed values to an underlying stream. The first write
// error is retained and returned by Err and by every subsequent write,
// so a field sequence can be written without per-call error checks.
type Writer struct {
	w   io.Writer
	err error
	buf [binary.MaxVarintLen64]byte
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered by any write, or nil.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = err
	}
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// WriteUint32 writes a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.write(b[:])
}

// WriteVarint writes an unsigned LEB128 varint.
func (w *Writer) WriteVarint(v uint64) {
	n := binary.PutUvarint(w.buf[:], v)
	w.write(w.buf[:n])
}

// WriteBool writes a single byte: 1 for true, 0 for false.
func (w *Writer) WriteBool(v bool) {
	b := [1]byte{0}
	if v {
		b[0] = 1
	}
	w.write(b[:])
}

// WriteFloat64 writes an IEEE 754 double, big-endian.
func (w *Writer) WriteFloat64(bits uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	w.write(b[:])
}

// WriteString writes a length-prefixed UTF-8 string. The reader's length
// ceiling is enforced here too, so an oversized value fails at the
// producer instead of encoding a stream the consumer must reject.
func (w *Writer) WriteString(s string) {
	if len(s) > maxStringLength {
		w.fail(fmt.Errorf("string length %d exceeds maximum %d", len(s), maxStringLength))
		return
	}
	w.WriteUint32(uint32(len(s)))
	w.write([]byte(s))
}

// WriteBinary writes a length-prefixed binary block, bounded by the same
// ceiling the reader applies.
func (w *Writer) WriteBinary(p []byte) {
	if len(p) > maxBinaryLength {
		w.fail(fmt.Errorf("binary block length %d exceeds maximum %d", len(p), maxBinaryLength))
		return
	}
	w.WriteUint32(uint32(len(p)))
	w.write(p)
}

// WriteStringList writes a uint32 count followed by that many
// length-prefixed strings, preserving order.
func (w *Writer) WriteStringList(entries []string) {
	if len(entries) > maxListCount {
		w.fail(fmt.Errorf("list count %d exceeds maximum %d", len(entries), maxListCount))
		return
	}
	w.WriteUint32(uint32(len(entries)))
	for _, entry := range entries {
		w.WriteString(entry)
	}
}

// Reader reads framed values from an underlying stream. Unlike Writer it
// fails fast: every read returns an error so malformed streams are
// rejected at the first bad field.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader consuming from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// ReadVarint reads an unsigned LEB128 varint.
func (r *Reader) ReadVarint() (uint64, error) {
	return binary.ReadUvarint(byteReader{r.r})
}

// ReadBool reads a single-byte boolean. Any value other than 0 or 1 is
// rejected — a stray byte here means the reader has lost framing.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("boolean byte is 0x%02x, want 0 or 1", b)
	}
}

// ReadByte reads a single raw byte.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadFloat64 reads an IEEE 754 double, big-endian, as raw bits.
func (r *Reader) ReadFloat64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if length > maxStringLength {
		return "", fmt.Errorf("string length %d exceeds maximum %d", length, maxStringLength)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBinary reads a length-prefixed binary block.
func (r *Reader) ReadBinary() ([]byte, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length > maxBinaryLength {
		return nil, fmt.Errorf("binary block length %d exceeds maximum %d", length, maxBinaryLength)
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ReadStringList reads a uint32 count followed by that many
// length-prefixed strings.
func (r *Reader) ReadStringList() ([]string, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if count > maxListCount {
		return nil, fmt.Errorf("list count %d exceeds maximum %d", count, maxListCount)
	}
	entries := make([]string, count)
	for i := range entries {
		entries[i], err = r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("list entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// byteReader adapts an io.Reader to io.ByteReader for varint decoding
// without requiring the underlying stream to buffer.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
