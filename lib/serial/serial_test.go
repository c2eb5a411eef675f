// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// task is a representative work-parameter graph: scalar fields, a nested
// pointer, and a slice of pointers that can alias or cycle.
type task struct {
	Name     string
	Priority int
	Enabled  bool
	Refs     []*task
	Parent   *task
	Labels   map[string]string
}

type settings struct {
	Threshold float64
	Retries   uint64
	Payload   []byte
	Deadline  time.Time
}

func init() {
	Register(task{})
	Register(settings{})
}

func TestScalarRoundtrip(t *testing.T) {
	original := settings{
		Threshold: 0.75,
		Retries:   3,
		Payload:   []byte{0x01, 0x02, 0x03},
		Deadline:  time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}

	data, err := Marshal(&original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *settings
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Threshold != original.Threshold {
		t.Errorf("Threshold: got %v, want %v", decoded.Threshold, original.Threshold)
	}
	if decoded.Retries != original.Retries {
		t.Errorf("Retries: got %d, want %d", decoded.Retries, original.Retries)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload: got %x, want %x", decoded.Payload, original.Payload)
	}
	if !decoded.Deadline.Equal(original.Deadline) {
		t.Errorf("Deadline: got %v, want %v", decoded.Deadline, original.Deadline)
	}
}

func TestStructRoundtrip(t *testing.T) {
	original := task{
		Name:     "compile",
		Priority: -2,
		Enabled:  true,
		Labels:   map[string]string{"stage": "build", "tier": "fast"},
	}

	data, err := Marshal(&original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Name != original.Name || decoded.Priority != original.Priority || decoded.Enabled != original.Enabled {
		t.Errorf("scalar fields: got %+v, want %+v", decoded, original)
	}
	if len(decoded.Labels) != 2 || decoded.Labels["stage"] != "build" || decoded.Labels["tier"] != "fast" {
		t.Errorf("Labels: got %v", decoded.Labels)
	}
}

func TestSharedReferenceAliasing(t *testing.T) {
	shared := &task{Name: "shared"}
	root := &task{
		Name: "root",
		Refs: []*task{shared, shared},
	}

	data, err := Marshal(root)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(decoded.Refs) != 2 {
		t.Fatalf("Refs length: got %d, want 2", len(decoded.Refs))
	}
	if decoded.Refs[0] != decoded.Refs[1] {
		t.Error("shared reference was duplicated: Refs[0] and Refs[1] are distinct instances")
	}
	if decoded.Refs[0].Name != "shared" {
		t.Errorf("Refs[0].Name: got %q", decoded.Refs[0].Name)
	}
}

func TestSelfReferenceCycle(t *testing.T) {
	root := &task{Name: "task1"}
	root.Refs = []*task{root}

	data, err := Marshal(root)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Name != "task1" {
		t.Errorf("Name: got %q, want %q", decoded.Name, "task1")
	}
	if len(decoded.Refs) != 1 || decoded.Refs[0] != decoded {
		t.Error("cycle not preserved: Refs[0] is not identity-equal to the decoded root")
	}
}

func TestMutualCycle(t *testing.T) {
	left := &task{Name: "left"}
	right := &task{Name: "right", Parent: left}
	left.Parent = right

	data, err := Marshal(left)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Parent == nil || decoded.Parent.Parent != decoded {
		t.Error("mutual cycle not preserved through transport")
	}
	if decoded.Parent.Name != "right" {
		t.Errorf("Parent.Name: got %q", decoded.Parent.Name)
	}
}

func TestSingleEncodingInvariant(t *testing.T) {
	// Encoding the same instance twice within one session must write one
	// full record and one back-reference. The second encoding is just the
	// root type name plus a varint id, so it is dramatically smaller.
	instance := &task{Name: "once", Labels: map[string]string{"k": "v"}}

	var firstOnly bytes.Buffer
	if err := NewEncoder(&firstOnly).Encode(instance); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var both bytes.Buffer
	session := NewEncoder(&both)
	if err := session.Encode(instance); err != nil {
		t.Fatalf("first Encode: %v", err)
	}
	if err := session.Encode(instance); err != nil {
		t.Fatalf("second Encode: %v", err)
	}

	backrefLength := both.Len() - firstOnly.Len()
	// Type name "*...task" plus a one-byte id.
	if backrefLength >= firstOnly.Len() {
		t.Errorf("second encoding wrote %d bytes, expected a back-reference smaller than the %d-byte full record",
			backrefLength, firstOnly.Len())
	}

	// Both reads resolve to the same instance in one decode session.
	decoder := NewDecoder(&both)
	var first, second *task
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if first != second {
		t.Error("back-reference decoded to a distinct instance")
	}
}

func TestFieldOrderDeterminism(t *testing.T) {
	// Two independently produced encodings of equal values must be
	// byte-identical: field order and sorted map keys are part of the
	// wire contract.
	make1 := func() *task {
		return &task{
			Name:     "deterministic",
			Priority: 7,
			Labels:   map[string]string{"b": "2", "a": "1", "c": "3"},
		}
	}

	first, err := Marshal(make1())
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(make1())
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("independent encodings differ:\n%x\n%x", first, second)
	}
}

func TestInterfaceValues(t *testing.T) {
	original := map[string]any{
		"name":  "task1",
		"count": 42,
		"flag":  true,
		"tags":  []string{"x", "y"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded is %T, want map[string]any", decoded)
	}
	if m["name"] != "task1" || m["count"] != 42 || m["flag"] != true {
		t.Errorf("decoded map: %v", m)
	}
	tags, ok := m["tags"].([]string)
	if !ok || len(tags) != 2 || tags[0] != "x" {
		t.Errorf("tags: %v", m["tags"])
	}
}

func TestNilValues(t *testing.T) {
	original := task{Name: "bare"}

	data, err := Marshal(&original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Refs != nil {
		t.Errorf("nil slice decoded as %v", decoded.Refs)
	}
	if decoded.Parent != nil {
		t.Errorf("nil pointer decoded as %v", decoded.Parent)
	}
	if decoded.Labels != nil {
		t.Errorf("nil map decoded as %v", decoded.Labels)
	}
}

func TestUnregisteredTypeError(t *testing.T) {
	type unregistered struct {
		Value int
	}

	_, err := Marshal(&unregistered{Value: 1})
	if err == nil {
		t.Fatal("Marshal accepted an unregistered type behind a pointer")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("error %q does not mention registration", err)
	}
}

func TestErrorNamesFieldPath(t *testing.T) {
	type inner struct {
		Handle chan int // unsupported kind
	}
	type outer struct {
		Label string
		Child inner
	}
	Register(outer{})

	_, err := Marshal(&outer{Label: "x"})
	if err == nil {
		t.Fatal("Marshal accepted a channel field")
	}
	for _, fragment := range []string{"outer.Child", "inner.Handle"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not contain field path fragment %q", err, fragment)
		}
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	data, err := Marshal(&task{Name: "a"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var wrong *settings
	if err := Unmarshal(data, &wrong); err == nil {
		t.Error("Unmarshal accepted a stream for a different root type")
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	data, err := Marshal(&task{Name: "truncate-me", Labels: map[string]string{"a": "b"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded *task
	if err := Unmarshal(data[:len(data)/2], &decoded); err == nil {
		t.Error("Unmarshal accepted a truncated stream")
	}
}

func BenchmarkMarshalGraph(b *testing.B) {
	shared := &task{Name: "shared"}
	root := &task{
		Name:   "root",
		Refs:   []*task{shared, shared, {Name: "third"}},
		Labels: map[string]string{"stage": "build"},
	}

	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		Marshal(root)
	}
}
