// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package procinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/quarry-build/quarry/lib/codec"
)

// Record describes one registered worker process.
type Record struct {
	// DisplayName is the human-readable launch name ("worker 3 for
	// compile").
	DisplayName string `cbor:"display_name"`

	// PID is the worker's operating system process id.
	PID int `cbor:"pid"`

	// Executable is the runtime executable the worker was launched
	// with.
	Executable string `cbor:"executable"`

	// BinaryDigest is the hex BLAKE3 digest of Executable at launch
	// time (lib/binhash format). Empty when the launcher could not hash
	// the binary.
	BinaryDigest string `cbor:"binary_digest,omitempty"`

	// CallbackID is the connection identity from the launch handshake,
	// tying the registry entry back to its launch.
	CallbackID string `cbor:"callback_id"`

	// StartedAt is when the worker registered itself.
	StartedAt time.Time `cbor:"started_at"`
}

// registryFile is the serialized form of the registry.
type registryFile struct {
	Records []Record `cbor:"records"`
}

// Registry is the worker process registry for one engine home. Safe
// for concurrent use within a process; cross-process mutations are
// serialized by the atomic rename, last writer wins.
type Registry struct {
	path string
	mu   sync.Mutex
}

// Shared zstd coders. Both are safe for concurrent use with
// EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("procinfo: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("procinfo: zstd decoder initialization failed: " + err.Error())
	}
}

// Open returns the registry for the given engine home, creating the
// workers directory if needed.
func Open(engineHome string) (*Registry, error) {
	directory := filepath.Join(engineHome, "workers")
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("creating workers directory: %w", err)
	}
	return &Registry{path: filepath.Join(directory, "registry.bin")}, nil
}

// Add registers a worker, replacing any existing entry with the same
// PID.
func (r *Registry) Add(record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	filtered := records[:0]
	for _, existing := range records {
		if existing.PID != record.PID {
			filtered = append(filtered, existing)
		}
	}
	filtered = append(filtered, record)

	return r.save(filtered)
}

// Remove deregisters the worker with the given PID. Removing an absent
// PID is not an error: the entry may already have been pruned.
func (r *Registry) Remove(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	filtered := records[:0]
	for _, existing := range records {
		if existing.PID != pid {
			filtered = append(filtered, existing)
		}
	}

	return r.save(filtered)
}

// List returns the registered workers whose processes are still alive,
// ordered by PID. Entries for dead PIDs are dropped from the result but
// left on disk; the next mutation rewrites the file without them.
func (r *Registry) List() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	live := records[:0]
	for _, record := range records {
		if processAlive(record.PID) {
			live = append(live, record)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].PID < live[j].PID })
	return live, nil
}

// load reads and decodes the registry file. A missing file is an empty
// registry.
func (r *Registry) load() ([]Record, error) {
	compressed, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing registry: %w", err)
	}

	var file registryFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	return file.Records, nil
}

// save encodes and writes the registry atomically: write to a temp file
// in the same directory, then rename over the registry path.
func (r *Registry) save(records []Record) error {
	data, err := codec.Marshal(registryFile{Records: records})
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(data, nil)

	temp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(compressed); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing registry temp file: %w", err)
	}

	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}

// processAlive reports whether a process with the given PID exists.
// Signal 0 performs the existence check without delivering anything;
// EPERM means the process exists but belongs to another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
