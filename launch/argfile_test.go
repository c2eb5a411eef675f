// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"os"
	"strings"
	"sync"
	"testing"
)

func TestTempAllocatorDistinctNames(t *testing.T) {
	allocator := newTempAllocator(t.TempDir())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		path := allocator.allocate("worker-args", ".txt")
		if seen[path] {
			t.Fatalf("allocate returned %s twice", path)
		}
		seen[path] = true
	}
}

func TestTempAllocatorConcurrent(t *testing.T) {
	allocator := newTempAllocator(t.TempDir())

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				path := allocator.allocate("worker-args", ".txt")
				mu.Lock()
				if seen[path] {
					t.Errorf("allocate returned %s twice", path)
				}
				seen[path] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestWriteArgumentFile(t *testing.T) {
	allocator := newTempAllocator(t.TempDir())
	path := allocator.allocate("worker-args", ".txt")

	classpath := []string{"/builds/A.jar", "/builds/B.jar"}
	if err := writeArgumentFile(path, classpath); err != nil {
		t.Fatalf("writeArgumentFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "-cp\n") {
		t.Errorf("argument file does not start with -cp: %q", content)
	}
	joined := strings.Join(classpath, string(os.PathListSeparator))
	if !strings.Contains(content, joined) {
		t.Errorf("argument file missing classpath %q: %q", joined, content)
	}
}

func TestQuoteArgument(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/plain/path.jar", `"/plain/path.jar"`},
		{"/path with spaces/a.jar", `"/path with spaces/a.jar"`},
		{`C:\libs\a.jar`, `"C:\\libs\\a.jar"`},
		{`odd"name.jar`, `"odd\"name.jar"`},
		{"", `""`},
	}

	for _, test := range tests {
		if got := quoteArgument(test.input); got != test.want {
			t.Errorf("quoteArgument(%q) = %s, want %s", test.input, got, test.want)
		}
	}
}
