// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// tempAllocator hands out collision-free scratch file names inside one
// directory. Names embed the launcher PID and a process-wide counter,
// so concurrent launches from one launcher and launches from separate
// launchers sharing a temp directory never collide.
type tempAllocator struct {
	directory string
	counter   atomic.Uint64
}

func newTempAllocator(directory string) *tempAllocator {
	return &tempAllocator{directory: directory}
}

// allocate returns a fresh path with the given prefix and suffix. The
// file is not created; the caller owns the name.
func (a *tempAllocator) allocate(prefix, suffix string) string {
	n := a.counter.Add(1)
	name := fmt.Sprintf("%s-%d-%d%s", prefix, os.Getpid(), n, suffix)
	return filepath.Join(a.directory, name)
}

// writeArgumentFile writes the classpath option into an argument file
// the runtime reads via @path. The file lives until the worker process
// exits: the runtime reads it at startup, but deleting it earlier races
// a slow-starting worker.
func writeArgumentFile(path string, classpath []string) error {
	var builder strings.Builder
	builder.WriteString("-cp\n")
	builder.WriteString(quoteArgument(strings.Join(classpath, string(os.PathListSeparator))))
	builder.WriteString("\n")

	if err := os.WriteFile(path, []byte(builder.String()), 0600); err != nil {
		return fmt.Errorf("writing argument file: %w", err)
	}
	return nil
}

// quoteArgument quotes a value for argument-file syntax: the value is
// wrapped in double quotes, with embedded backslashes and quotes
// escaped. Quoting unconditionally keeps paths with spaces intact and
// costs nothing for paths without.
func quoteArgument(value string) string {
	var builder strings.Builder
	builder.Grow(len(value) + 2)
	builder.WriteByte('"')
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\\', '"':
			builder.WriteByte('\\')
		}
		builder.WriteByte(value[i])
	}
	builder.WriteByte('"')
	return builder.String()
}
