// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"

	"github.com/quarry-build/quarry/lib/addr"
	"github.com/quarry-build/quarry/lib/codec"
)

// Result is the outcome message a worker sends back on the callback
// connection when its work finishes.
type Result struct {
	// CallbackID echoes the connection identity from the handshake, so
	// the launcher can match the result to its launch.
	CallbackID string `cbor:"callback_id"`

	// WorkName is the display name of the executed work.
	WorkName string `cbor:"work_name"`

	// Success reports whether Execute returned nil.
	Success bool `cbor:"success"`

	// Error carries the execution error's message when Success is
	// false.
	Error string `cbor:"error,omitempty"`
}

// Reporter delivers a worker's result to its launcher.
type Reporter interface {
	Report(ctx context.Context, result Result) error
}

// dialReporter is the production reporter: it dials the first reachable
// callback candidate and writes the result as one CBOR message.
type dialReporter struct {
	address addr.MultiAddress
}

func (r dialReporter) Report(ctx context.Context, result Result) error {
	conn, err := addr.DialFirst(ctx, r.address)
	if err != nil {
		return fmt.Errorf("dialing callback %s: %w", r.address, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(result); err != nil {
		return fmt.Errorf("sending result: %w", err)
	}
	return nil
}
