// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import "bytes"

// Marshal encodes value through a fresh one-shot encode session.
func Marshal(value any) ([]byte, error) {
	var buffer bytes.Buffer
	if err := NewEncoder(&buffer).Encode(value); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Unmarshal decodes data into target through a fresh one-shot decode
// session. target must be a non-nil pointer.
func Unmarshal(data []byte, target any) error {
	return NewDecoder(bytes.NewReader(data)).Decode(target)
}

// Builtin wire names. These let ordinary parameter values — strings,
// numbers, maps — travel through interface slots without an explicit
// Register call at every call site.
func init() {
	RegisterName("bool", false)
	RegisterName("string", "")
	RegisterName("int", int(0))
	RegisterName("int64", int64(0))
	RegisterName("uint64", uint64(0))
	RegisterName("float64", float64(0))
	RegisterName("[]byte", []byte(nil))
	RegisterName("[]string", []string(nil))
	RegisterName("[]any", []any(nil))
	RegisterName("map[string]string", map[string]string(nil))
	RegisterName("map[string]any", map[string]any(nil))
}
