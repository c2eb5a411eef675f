// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"

	"github.com/quarry-build/quarry/lib/wire"
)

// Encoder is one encode session. It owns the session's identity registry:
// the first time a pointer is encountered it is assigned the next integer
// id and written in full; every later encounter writes only the id. An
// Encoder is single-pass, not safe for concurrent use, and must not be
// reused for unrelated encode operations — identity equality is only
// meaningful within one session.
type Encoder struct {
	w    *wire.Writer
	ids  map[any]uint64
	next uint64
}

// NewEncoder returns an encode session writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:    wire.NewWriter(w),
		ids:  make(map[any]uint64),
		next: 1, // id 0 is the nil marker
	}
}

// Encode writes value to the session's stream. The concrete type's
// registered name is written first, so the receiving session can decode
// into an interface target without prior knowledge of the type.
func (enc *Encoder) Encode(value any) error {
	if err := enc.encodeInterfaceValue(reflect.ValueOf(value)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := enc.w.Err(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// encodeValue dispatches on the declared type of the slot being written.
// Specialized codecs take precedence for non-pointer, non-interface
// types; everything else follows the kind switch, with the generic
// field-reflecting path handling structs.
func (enc *Encoder) encodeValue(v reflect.Value) error {
	kind := v.Kind()
	if kind != reflect.Pointer && kind != reflect.Interface {
		if codec, ok := codecFor(v.Type()); ok {
			return codec.Encode(enc, v)
		}
	}

	switch kind {
	case reflect.Bool:
		enc.w.WriteBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		enc.w.WriteVarint(zigzag(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		enc.w.WriteVarint(v.Uint())
	case reflect.Float32, reflect.Float64:
		enc.w.WriteFloat64(math.Float64bits(v.Float()))
	case reflect.String:
		enc.w.WriteString(v.String())
	case reflect.Slice:
		return enc.encodeSlice(v)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := enc.encodeValue(v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case reflect.Map:
		return enc.encodeMap(v)
	case reflect.Struct:
		return enc.encodeStruct(v)
	case reflect.Pointer:
		return enc.encodePointer(v)
	case reflect.Interface:
		return enc.encodeInterfaceValue(v.Elem())
	default:
		return fmt.Errorf("unsupported kind %s", kind)
	}
	return nil
}

// encodeStruct writes each exported field in declared order through the
// cached per-type descriptor list. Failures are tagged with the enclosing
// type and field name so they are attributable to a property, not a byte
// offset.
func (enc *Encoder) encodeStruct(v reflect.Value) error {
	t := v.Type()
	for _, field := range fieldsOf(t) {
		if err := enc.encodeValue(v.Field(field.index)); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), field.name, err)
		}
		if err := enc.w.Err(); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), field.name, err)
		}
	}
	return nil
}

// encodeSlice writes varint(len+1) — 0 marks a nil slice — followed by
// the elements. Byte slices are written as one block.
func (enc *Encoder) encodeSlice(v reflect.Value) error {
	if v.IsNil() {
		enc.w.WriteVarint(0)
		return nil
	}
	enc.w.WriteVarint(uint64(v.Len()) + 1)
	if v.Type().Elem().Kind() == reflect.Uint8 {
		enc.w.WriteBinary(v.Bytes())
		return nil
	}
	for i := 0; i < v.Len(); i++ {
		if err := enc.encodeValue(v.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

// encodeMap writes varint(len+1) — 0 marks a nil map — followed by
// key/value pairs. String keys are written in sorted order so equal maps
// produce equal bytes; other key types follow map iteration order.
func (enc *Encoder) encodeMap(v reflect.Value) error {
	if v.IsNil() {
		enc.w.WriteVarint(0)
		return nil
	}
	enc.w.WriteVarint(uint64(v.Len()) + 1)

	if v.Type().Key().Kind() == reflect.String {
		keys := make([]string, 0, v.Len())
		for _, key := range v.MapKeys() {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		keyType := v.Type().Key()
		for _, key := range keys {
			keyValue := reflect.ValueOf(key).Convert(keyType)
			enc.w.WriteString(key)
			if err := enc.encodeValue(v.MapIndex(keyValue)); err != nil {
				return fmt.Errorf("[%q]: %w", key, err)
			}
		}
		return nil
	}

	iter := v.MapRange()
	for iter.Next() {
		if err := enc.encodeValue(iter.Key()); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		if err := enc.encodeValue(iter.Value()); err != nil {
			return fmt.Errorf("map value: %w", err)
		}
	}
	return nil
}

// encodePointer is the identity path. A nil pointer writes id 0. A
// pointer already in the session's identity registry writes only its id
// (a back-reference). A fresh pointer is assigned the next id and written
// as id, registered type name, then pointee.
func (enc *Encoder) encodePointer(v reflect.Value) error {
	if v.IsNil() {
		enc.w.WriteVarint(0)
		return nil
	}

	identity := v.Interface()
	if id, seen := enc.ids[identity]; seen {
		enc.w.WriteVarint(id)
		return nil
	}

	id := enc.next
	enc.next++
	enc.ids[identity] = id
	enc.w.WriteVarint(id)

	name, err := nameFor(v.Type().Elem())
	if err != nil {
		return err
	}
	enc.w.WriteString(name)
	return enc.encodeValue(v.Elem())
}

// encodeInterfaceValue writes an interface slot: an empty type name for
// nil, otherwise the concrete type's registered name ("*name" when the
// concrete value is a pointer) followed by the concrete value.
func (enc *Encoder) encodeInterfaceValue(v reflect.Value) error {
	if !v.IsValid() {
		enc.w.WriteString("")
		return nil
	}

	t := v.Type()
	pointer := t.Kind() == reflect.Pointer
	if pointer {
		t = t.Elem()
	}
	name, err := nameFor(t)
	if err != nil {
		return err
	}
	if pointer {
		name = "*" + name
	}
	enc.w.WriteString(name)
	return enc.encodeValue(v)
}

// zigzag maps signed integers to unsigned so small negative values stay
// small on the wire.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// unzigzag reverses zigzag.
func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
