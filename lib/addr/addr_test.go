// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package addr

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/quarry-build/quarry/lib/wire"
)

func TestCodecRoundtrip(t *testing.T) {
	original := MultiAddress{
		ID:    "00112233445566778899aabbccddeeff",
		Port:  1234,
		Hosts: []string{"host1", "host2"},
	}

	var buffer bytes.Buffer
	w := wire.NewWriter(&buffer)
	Write(w, original)
	if err := w.Err(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	decoded, err := Read(wire.NewReader(&buffer))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if decoded.ID != original.ID || decoded.Port != original.Port {
		t.Errorf("identity: got %s:%d, want %s:%d", decoded.ID, decoded.Port, original.ID, original.Port)
	}
	if len(decoded.Hosts) != 2 || decoded.Hosts[0] != "host1" || decoded.Hosts[1] != "host2" {
		t.Errorf("hosts: %v", decoded.Hosts)
	}
}

func TestSelfDelimiting(t *testing.T) {
	// The address block must consume exactly its own bytes, leaving the
	// following handshake field intact.
	address := MultiAddress{ID: "ab", Port: 9, Hosts: []string{"a"}}

	var buffer bytes.Buffer
	w := wire.NewWriter(&buffer)
	Write(w, address)
	w.WriteString("next field")
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	r := wire.NewReader(&buffer)
	if _, err := Read(r); err != nil {
		t.Fatalf("Read: %v", err)
	}
	next, err := r.ReadString()
	if err != nil || next != "next field" {
		t.Errorf("following field: %q, %v", next, err)
	}
}

func TestNewMultiAddressAllocatesDistinctIDs(t *testing.T) {
	first, err := NewMultiAddress(1234, "localhost")
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewMultiAddress(1234, "localhost")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("two launches received the same connection id")
	}
	if len(first.ID) != 32 {
		t.Errorf("id length: %d, want 32 hex characters", len(first.ID))
	}
}

func TestCandidateOrder(t *testing.T) {
	address := MultiAddress{Port: 1234, Hosts: []string{"host1", "host2"}}
	candidates := address.Candidates()
	if len(candidates) != 2 || candidates[0] != "host1:1234" || candidates[1] != "host2:1234" {
		t.Errorf("candidates: %v", candidates)
	}
}

func TestReadRejectsOutOfRangePort(t *testing.T) {
	var buffer bytes.Buffer
	w := wire.NewWriter(&buffer)
	w.WriteString("id")
	w.WriteVarint(70000)
	w.WriteStringList(nil)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(wire.NewReader(&buffer)); err == nil {
		t.Error("Read accepted a port above 65535")
	}
}

func TestDialFirstSkipsUnreachableCandidate(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	// The first candidate is not a valid address at all, so it fails
	// immediately; the second is the live listener.
	address := MultiAddress{ID: "t", Port: port, Hosts: []string{"256.256.256.256", "127.0.0.1"}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := DialFirst(ctx, address)
	if err != nil {
		t.Fatalf("DialFirst: %v", err)
	}
	conn.Close()
}

func TestDialFirstNoCandidates(t *testing.T) {
	if _, err := DialFirst(context.Background(), MultiAddress{}); err == nil {
		t.Error("DialFirst succeeded with no candidates")
	}
}
