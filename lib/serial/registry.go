// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// typeRegistry maps wire type names to Go types and back. Pointer and
// interface slots carry a type name on the wire; the decoding process
// resolves it here. Registration is process-wide (like the action
// registry it mirrors), not session-scoped.
type typeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

var types = &typeRegistry{
	byName: make(map[string]reflect.Type),
	byType: make(map[reflect.Type]string),
}

// Register registers value's type under its package-qualified name
// (for example "github.com/quarry-build/quarry/lib/action.TransportableSpec").
// Pass a value of the type itself, not a pointer to it.
func Register(value any) {
	t := reflect.TypeOf(value)
	if t == nil {
		panic("serial: Register called with nil value")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.PkgPath() + "." + t.Name()
	if t.Name() == "" {
		panic("serial: cannot register unnamed type " + t.String())
	}
	RegisterName(name, reflect.Zero(t).Interface())
}

// RegisterName registers value's type under an explicit wire name. Use
// this when the sending and receiving processes are built from different
// module paths, or to keep wire names stable across refactors.
func RegisterName(name string, value any) {
	t := reflect.TypeOf(value)
	if t == nil {
		panic("serial: RegisterName called with nil value")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	types.mu.Lock()
	defer types.mu.Unlock()
	if existing, ok := types.byName[name]; ok && existing != t {
		panic(fmt.Sprintf("serial: name %q already registered for %s", name, existing))
	}
	types.byName[name] = t
	types.byType[t] = name
}

// nameFor returns the registered wire name for t.
func nameFor(t reflect.Type) (string, error) {
	types.mu.RLock()
	defer types.mu.RUnlock()
	name, ok := types.byType[t]
	if !ok {
		return "", fmt.Errorf("type %s is not registered (call serial.Register)", t)
	}
	return name, nil
}

// typeFor resolves a wire name to its registered type.
func typeFor(name string) (reflect.Type, error) {
	types.mu.RLock()
	defer types.mu.RUnlock()
	t, ok := types.byName[name]
	if !ok {
		return nil, fmt.Errorf("no type registered under name %q", name)
	}
	return t, nil
}

// TypeCodec encodes and decodes values of a single type. Implementations
// are registered with RegisterCodec and dispatched by the session before
// the generic field-reflecting fallback.
type TypeCodec interface {
	Encode(enc *Encoder, v reflect.Value) error
	Decode(dec *Decoder, v reflect.Value) error
}

// codecs maps reflect.Type to a specialized TypeCodec. Types without an
// entry fall through to the generic struct codec — callers never need to
// know which path handled a value.
var codecs sync.Map // reflect.Type -> TypeCodec

// RegisterCodec installs a specialized codec for value's type, replacing
// any previous registration.
func RegisterCodec(value any, codec TypeCodec) {
	codecs.Store(reflect.TypeOf(value), codec)
}

// codecFor returns the specialized codec for t, if any.
func codecFor(t reflect.Type) (TypeCodec, bool) {
	c, ok := codecs.Load(t)
	if !ok {
		return nil, false
	}
	return c.(TypeCodec), true
}

// fieldDescriptor identifies one exported struct field in its declared
// position. The index is the field's position in the struct, which is
// stable for a compiled type — declared order is the wire contract.
type fieldDescriptor struct {
	name  string
	index int
}

// fieldCache holds the per-type field descriptor lists. Computing the
// list walks reflect metadata; it happens once per type, never per
// instance.
var fieldCache sync.Map // reflect.Type -> []fieldDescriptor

// fieldsOf returns the exported fields of struct type t in declared order.
func fieldsOf(t reflect.Type) []fieldDescriptor {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldDescriptor)
	}
	var fields []fieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fields = append(fields, fieldDescriptor{name: field.Name, index: i})
	}
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]fieldDescriptor)
}

// timeCodec serializes time.Time as Unix nanoseconds plus the zone
// offset. time.Time's fields are unexported, so the generic codec cannot
// handle it; this is the canonical example of a specialized registration.
type timeCodec struct{}

func (timeCodec) Encode(enc *Encoder, v reflect.Value) error {
	t := v.Interface().(time.Time)
	enc.w.WriteVarint(zigzag(t.UnixNano()))
	_, offset := t.Zone()
	enc.w.WriteVarint(zigzag(int64(offset)))
	return enc.w.Err()
}

func (timeCodec) Decode(dec *Decoder, v reflect.Value) error {
	nanos, err := dec.r.ReadVarint()
	if err != nil {
		return err
	}
	offset, err := dec.r.ReadVarint()
	if err != nil {
		return err
	}
	zone := time.FixedZone("", int(unzigzag(offset)))
	v.Set(reflect.ValueOf(time.Unix(0, unzigzag(nanos)).In(zone)))
	return nil
}

func init() {
	RegisterCodec(time.Time{}, timeCodec{})
	RegisterName("time.Time", time.Time{})
}
