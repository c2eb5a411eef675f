// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"os"

	"github.com/quarry-build/quarry/lib/binhash"
)

// ComputeSelfHash returns the hex digest and absolute filesystem path
// of the currently running binary. Uses os.Executable() to resolve the
// binary path, which on Linux reads /proc/self/exe — always pointing to
// the original binary even if it has been replaced on disk since the
// process started.
func ComputeSelfHash() (hash string, binaryPath string, err error) {
	executable, err := os.Executable()
	if err != nil {
		return "", "", fmt.Errorf("resolving own executable path: %w", err)
	}
	digest, err := binhash.HashFile(executable)
	if err != nil {
		return "", "", fmt.Errorf("hashing own binary at %s: %w", executable, err)
	}
	return binhash.FormatDigest(digest), executable, nil
}

// BinaryChanged compares the executable at desiredPath against a
// recorded hex digest. Returns true (changed) when:
//   - recordedDigest is empty (nothing recorded yet, treat as stale)
//   - the file's content digest differs from recordedDigest
//
// Returns false (unchanged) when the content matches, meaning a worker
// registered with recordedDigest still runs the current binary.
func BinaryChanged(desiredPath string, recordedDigest string) (bool, error) {
	if recordedDigest == "" {
		return true, nil
	}
	digest, err := binhash.HashFile(desiredPath)
	if err != nil {
		return false, fmt.Errorf("hashing %s: %w", desiredPath, err)
	}
	return binhash.FormatDigest(digest) != recordedDigest, nil
}
