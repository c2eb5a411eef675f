// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/quarry-build/quarry/lib/wire"
)

// Decoder is one decode session. It owns the session's read table: the
// mirror of the encode side's identity registry, mapping integer ids to
// decoded instances. A Decoder is single-pass, not safe for concurrent
// use, and must not be reused for unrelated decode operations.
type Decoder struct {
	r         *wire.Reader
	instances []reflect.Value
}

// NewDecoder returns a decode session reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: wire.NewReader(r)}
}

// Decode reads one value into target, which must be a non-nil pointer.
// When the pointee is an interface (including any), the concrete type is
// taken from the stream; otherwise the stream's type must match the
// target.
func (dec *Decoder) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode: target must be a non-nil pointer, got %T", target)
	}
	if err := dec.decodeRoot(rv.Elem()); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// decodeRoot consumes the leading type name written by Encoder.Encode
// and decodes the value into slot.
func (dec *Decoder) decodeRoot(slot reflect.Value) error {
	if slot.Kind() == reflect.Interface {
		return dec.decodeInterface(slot)
	}

	name, err := dec.r.ReadString()
	if err != nil {
		return err
	}
	declared, err := wireNameOf(slot.Type())
	if err != nil {
		return err
	}
	if name != declared {
		return fmt.Errorf("stream carries %q, target is %q", name, declared)
	}
	return dec.decodeValue(slot)
}

// decodeValue populates slot by reading fields in the identical order the
// encoder wrote them. slot must be settable.
func (dec *Decoder) decodeValue(slot reflect.Value) error {
	kind := slot.Kind()
	if kind != reflect.Pointer && kind != reflect.Interface {
		if codec, ok := codecFor(slot.Type()); ok {
			return codec.Decode(dec, slot)
		}
	}

	switch kind {
	case reflect.Bool:
		b, err := dec.r.ReadBool()
		if err != nil {
			return err
		}
		slot.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		u, err := dec.r.ReadVarint()
		if err != nil {
			return err
		}
		slot.SetInt(unzigzag(u))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := dec.r.ReadVarint()
		if err != nil {
			return err
		}
		slot.SetUint(u)
	case reflect.Float32, reflect.Float64:
		bits, err := dec.r.ReadFloat64()
		if err != nil {
			return err
		}
		slot.SetFloat(math.Float64frombits(bits))
	case reflect.String:
		s, err := dec.r.ReadString()
		if err != nil {
			return err
		}
		slot.SetString(s)
	case reflect.Slice:
		return dec.decodeSlice(slot)
	case reflect.Array:
		for i := 0; i < slot.Len(); i++ {
			if err := dec.decodeValue(slot.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case reflect.Map:
		return dec.decodeMap(slot)
	case reflect.Struct:
		return dec.decodeStruct(slot)
	case reflect.Pointer:
		return dec.decodePointer(slot)
	case reflect.Interface:
		return dec.decodeInterface(slot)
	default:
		return fmt.Errorf("unsupported kind %s", kind)
	}
	return nil
}

func (dec *Decoder) decodeStruct(slot reflect.Value) error {
	t := slot.Type()
	for _, field := range fieldsOf(t) {
		if err := dec.decodeValue(slot.Field(field.index)); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), field.name, err)
		}
	}
	return nil
}

func (dec *Decoder) decodeSlice(slot reflect.Value) error {
	header, err := dec.r.ReadVarint()
	if err != nil {
		return err
	}
	if header == 0 {
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	}
	length := int(header - 1)

	if slot.Type().Elem().Kind() == reflect.Uint8 {
		block, err := dec.r.ReadBinary()
		if err != nil {
			return err
		}
		if len(block) != length {
			return fmt.Errorf("byte slice block is %d bytes, header says %d", len(block), length)
		}
		value := reflect.MakeSlice(slot.Type(), length, length)
		reflect.Copy(value, reflect.ValueOf(block))
		slot.Set(value)
		return nil
	}

	value := reflect.MakeSlice(slot.Type(), length, length)
	// Set before populating so self-referential elements (an element
	// pointing back at a struct that holds this slice) observe the final
	// slice header rather than a stale copy.
	slot.Set(value)
	for i := 0; i < length; i++ {
		if err := dec.decodeValue(slot.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (dec *Decoder) decodeMap(slot reflect.Value) error {
	header, err := dec.r.ReadVarint()
	if err != nil {
		return err
	}
	if header == 0 {
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	}
	length := int(header - 1)

	t := slot.Type()
	value := reflect.MakeMapWithSize(t, length)
	slot.Set(value)
	for i := 0; i < length; i++ {
		key := reflect.New(t.Key()).Elem()
		if err := dec.decodeValue(key); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		element := reflect.New(t.Elem()).Elem()
		if err := dec.decodeValue(element); err != nil {
			return fmt.Errorf("[%v]: %w", key.Interface(), err)
		}
		value.SetMapIndex(key, element)
	}
	return nil
}

// decodePointer is the read side of the identity path. Id 0 is nil. An id
// already present in the read table resolves to the existing instance —
// identity preserved, nothing re-decoded. A fresh id must be the next
// sequential one; its instance is allocated and registered in the read
// table BEFORE its fields are populated, so a field that refers back to
// the object currently being decoded resolves to this same instance
// instead of recursing forever or producing a duplicate.
func (dec *Decoder) decodePointer(slot reflect.Value) error {
	id, err := dec.r.ReadVarint()
	if err != nil {
		return err
	}
	if id == 0 {
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	}

	if id <= uint64(len(dec.instances)) {
		instance := dec.instances[id-1]
		if !instance.Type().AssignableTo(slot.Type()) {
			return fmt.Errorf("back-reference %d is %s, slot wants %s", id, instance.Type(), slot.Type())
		}
		slot.Set(instance)
		return nil
	}
	if id != uint64(len(dec.instances))+1 {
		return fmt.Errorf("object id %d out of sequence (next is %d)", id, len(dec.instances)+1)
	}

	name, err := dec.r.ReadString()
	if err != nil {
		return err
	}
	t, err := typeFor(name)
	if err != nil {
		return err
	}
	instance := reflect.New(t)
	if !instance.Type().AssignableTo(slot.Type()) {
		return fmt.Errorf("stream carries *%s, slot wants %s", name, slot.Type())
	}
	dec.instances = append(dec.instances, instance)
	slot.Set(instance)
	return dec.decodeValue(instance.Elem())
}

// decodeInterface reads an interface slot: the concrete type name (empty
// for nil, "*"-prefixed for pointers) followed by the concrete value.
func (dec *Decoder) decodeInterface(slot reflect.Value) error {
	name, err := dec.r.ReadString()
	if err != nil {
		return err
	}
	if name == "" {
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	}

	pointer := strings.HasPrefix(name, "*")
	t, err := typeFor(strings.TrimPrefix(name, "*"))
	if err != nil {
		return err
	}
	if pointer {
		t = reflect.PointerTo(t)
	}
	concrete := reflect.New(t).Elem()
	if err := dec.decodeValue(concrete); err != nil {
		return err
	}
	if !t.AssignableTo(slot.Type()) {
		return fmt.Errorf("concrete type %s does not implement %s", t, slot.Type())
	}
	slot.Set(concrete)
	return nil
}

// wireNameOf returns the wire name the encoder would write for a concrete
// root of type t ("*name" for pointer roots).
func wireNameOf(t reflect.Type) (string, error) {
	if t.Kind() == reflect.Pointer {
		name, err := nameFor(t.Elem())
		if err != nil {
			return "", err
		}
		return "*" + name, nil
	}
	return nameFor(t)
}
