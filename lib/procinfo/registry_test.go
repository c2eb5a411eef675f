// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package procinfo

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return registry
}

// selfRecord returns a record whose PID is the test process, so the
// liveness filter keeps it.
func selfRecord(name string) Record {
	return Record{
		DisplayName: name,
		PID:         os.Getpid(),
		Executable:  "/usr/bin/java",
		CallbackID:  "00112233445566778899aabbccddeeff",
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestAddAndList(t *testing.T) {
	registry := openTestRegistry(t)

	record := selfRecord("worker 1 for compile")
	if err := registry.Add(record); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List returned %d records, want 1", len(records))
	}
	got := records[0]
	if got.DisplayName != record.DisplayName || got.PID != record.PID || got.CallbackID != record.CallbackID {
		t.Errorf("record mismatch: got %+v, want %+v", got, record)
	}
	if !got.StartedAt.Equal(record.StartedAt) {
		t.Errorf("started_at: got %v, want %v", got.StartedAt, record.StartedAt)
	}
}

func TestAddReplacesSamePID(t *testing.T) {
	registry := openTestRegistry(t)

	if err := registry.Add(selfRecord("first registration")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.Add(selfRecord("second registration")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List returned %d records, want 1 (same PID should replace)", len(records))
	}
	if records[0].DisplayName != "second registration" {
		t.Errorf("kept record: %q", records[0].DisplayName)
	}
}

func TestRemove(t *testing.T) {
	registry := openTestRegistry(t)

	record := selfRecord("worker")
	if err := registry.Add(record); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.Remove(record.PID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List after Remove returned %d records", len(records))
	}
}

func TestRemoveAbsentPID(t *testing.T) {
	registry := openTestRegistry(t)
	if err := registry.Remove(999999); err != nil {
		t.Errorf("Remove of absent PID: %v", err)
	}
}

func TestListEmptyRegistry(t *testing.T) {
	registry := openTestRegistry(t)
	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("fresh registry has %d records", len(records))
	}
}

func TestListPrunesDeadPIDs(t *testing.T) {
	registry := openTestRegistry(t)

	if err := registry.Add(selfRecord("alive")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dead := Record{
		DisplayName: "dead",
		// A PID far above any default pid_max; certainly not running.
		PID:        1 << 30,
		Executable: "/usr/bin/java",
		StartedAt:  time.Now(),
	}
	if err := registry.Add(dead); err != nil {
		t.Fatalf("Add dead: %v", err)
	}

	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].DisplayName != "alive" {
		t.Errorf("List returned %+v, want only the live record", records)
	}
}

func TestRegistrySurvivesReopen(t *testing.T) {
	home := t.TempDir()

	first, err := Open(home)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Add(selfRecord("persistent worker")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	second, err := Open(home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	records, err := second.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].DisplayName != "persistent worker" {
		t.Errorf("reopened registry: %+v", records)
	}
}

func TestCorruptRegistryFileReported(t *testing.T) {
	home := t.TempDir()
	registry, err := Open(home)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	path := filepath.Join(home, "workers", "registry.bin")
	if err := os.WriteFile(path, []byte("not zstd at all"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := registry.List(); err == nil {
		t.Error("List accepted a corrupt registry file")
	}
}

func TestConcurrentMutations(t *testing.T) {
	registry := openTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record := selfRecord("concurrent worker")
			for j := 0; j < 10; j++ {
				if err := registry.Add(record); err != nil {
					t.Errorf("Add: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	records, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// All goroutines used the same PID, so exactly one entry remains.
	if len(records) != 1 {
		t.Errorf("List returned %d records, want 1", len(records))
	}
}
