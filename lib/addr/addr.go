// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package addr defines the multi-candidate callback address a worker
// process uses to reach back to its launcher, and the dedicated codec
// that writes it into the launch handshake. The launcher may be
// reachable on several interfaces; the address carries every candidate
// and the worker tries them in order.
package addr

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/quarry-build/quarry/lib/wire"
)

// MultiAddress is a callback endpoint with several candidate hosts
// sharing one port. The ID ties a worker connection back to the launch
// that created it, independent of which candidate succeeded.
type MultiAddress struct {
	// ID is the launch's connection identity: 16 random bytes, hex
	// encoded. Assigned by NewMultiAddress, carried verbatim through
	// the handshake.
	ID string

	// Port is the TCP port shared by all candidates.
	Port int

	// Hosts are the candidate host addresses, in the order the worker
	// should try them.
	Hosts []string
}

// NewMultiAddress allocates a fresh connection identity for the given
// candidates.
func NewMultiAddress(port int, hosts ...string) (MultiAddress, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return MultiAddress{}, fmt.Errorf("allocating connection id: %w", err)
	}
	return MultiAddress{
		ID:    hex.EncodeToString(raw[:]),
		Port:  port,
		Hosts: hosts,
	}, nil
}

// Candidates returns the address's host:port endpoints in try order.
func (a MultiAddress) Candidates() []string {
	candidates := make([]string, len(a.Hosts))
	for i, host := range a.Hosts {
		candidates[i] = net.JoinHostPort(host, strconv.Itoa(a.Port))
	}
	return candidates
}

// String renders the address for logs: the candidate list plus the
// connection id.
func (a MultiAddress) String() string {
	return fmt.Sprintf("%v (connection %s)", a.Candidates(), a.ID)
}

// Write emits the address onto w as a self-delimiting block: id, port,
// candidate host list.
func Write(w *wire.Writer, a MultiAddress) {
	w.WriteString(a.ID)
	w.WriteVarint(uint64(a.Port))
	w.WriteStringList(a.Hosts)
}

// Read consumes an address written by Write.
func Read(r *wire.Reader) (MultiAddress, error) {
	id, err := r.ReadString()
	if err != nil {
		return MultiAddress{}, fmt.Errorf("reading connection id: %w", err)
	}
	port, err := r.ReadVarint()
	if err != nil {
		return MultiAddress{}, fmt.Errorf("reading port: %w", err)
	}
	if port > 65535 {
		return MultiAddress{}, fmt.Errorf("port %d out of range", port)
	}
	hosts, err := r.ReadStringList()
	if err != nil {
		return MultiAddress{}, fmt.Errorf("reading candidate hosts: %w", err)
	}
	return MultiAddress{ID: id, Port: int(port), Hosts: hosts}, nil
}

// DialFirst connects to the first reachable candidate, in order. The
// callback channel's protocol is the caller's concern; this only
// establishes the connection.
func DialFirst(ctx context.Context, a MultiAddress) (net.Conn, error) {
	if len(a.Hosts) == 0 {
		return nil, errors.New("address has no candidate hosts")
	}
	var dialer net.Dialer
	var errs []error
	for _, candidate := range a.Candidates() {
		conn, err := dialer.DialContext(ctx, "tcp", candidate)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
	}
	return nil, fmt.Errorf("no candidate reachable: %w", errors.Join(errs...))
}
