// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"
	"io"

	"github.com/quarry-build/quarry/lib/action"
	"github.com/quarry-build/quarry/lib/addr"
	"github.com/quarry-build/quarry/lib/serial"
	"github.com/quarry-build/quarry/lib/wire"
)

// Handshake is the configuration stream a worker reads from stdin
// before doing anything else. It is the launch's single configuration
// channel: no environment variables, no flags, no follow-up control
// messages.
//
// The wire layout is fixed. Fields appear in exactly this order:
//
//	1. application classpath    string list
//	2. shared packages          string list
//	3. implementation classpath string list
//	4. log level                varint ordinal
//	5. publish process info     bool
//	6. engine home              string
//	7. callback address         addr block (id, port, hosts)
//	8. work descriptor          binary block (graph-encoded envelope)
//
// New fields are only ever appended. Both sides of the protocol live in
// this file so the order cannot drift.
type Handshake struct {
	ApplicationClasspath    []string
	SharedPackages          []string
	ImplementationClasspath []string
	LogLevel                LogLevel
	PublishProcessInfo      bool
	EngineHome              string
	Callback                addr.MultiAddress
	Work                    *action.TransportableSpec
}

// NewHandshake assembles the handshake for a descriptor and its
// allocated callback address. The work envelope is graph-encoded here,
// so an unregistered parameter type fails the launch before any process
// is started.
func NewHandshake(d *Descriptor, callback addr.MultiAddress) (*Handshake, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Handshake{
		ApplicationClasspath:    d.ApplicationClasspath,
		SharedPackages:          d.SharedPackages,
		ImplementationClasspath: d.ImplementationClasspath,
		LogLevel:                d.LogLevel,
		PublishProcessInfo:      d.PublishProcessInfo,
		EngineHome:              d.EngineHome,
		Callback:                callback,
		Work:                    d.Work,
	}, nil
}

// WriteHandshake writes the handshake onto w in wire order. The write
// is buffered by the wire writer's own error accumulation: the first
// failing field aborts the rest, and the error names the stage.
func WriteHandshake(out io.Writer, h *Handshake) error {
	envelope, err := serial.Marshal(h.Work)
	if err != nil {
		return fmt.Errorf("encoding work descriptor: %w", err)
	}

	w := wire.NewWriter(out)
	w.WriteStringList(h.ApplicationClasspath)
	w.WriteStringList(h.SharedPackages)
	w.WriteStringList(h.ImplementationClasspath)
	w.WriteVarint(uint64(h.LogLevel))
	w.WriteBool(h.PublishProcessInfo)
	w.WriteString(h.EngineHome)
	addr.Write(w, h.Callback)
	w.WriteBinary(envelope)
	if err := w.Err(); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}
	return nil
}

// ReadHandshake reads a handshake written by WriteHandshake. Errors
// name the field being read, so a truncated or mis-framed stream
// reports where it diverged.
func ReadHandshake(in io.Reader) (*Handshake, error) {
	r := wire.NewReader(in)
	h := &Handshake{}

	var err error
	if h.ApplicationClasspath, err = r.ReadStringList(); err != nil {
		return nil, fmt.Errorf("reading application classpath: %w", err)
	}
	if h.SharedPackages, err = r.ReadStringList(); err != nil {
		return nil, fmt.Errorf("reading shared packages: %w", err)
	}
	if h.ImplementationClasspath, err = r.ReadStringList(); err != nil {
		return nil, fmt.Errorf("reading implementation classpath: %w", err)
	}

	level, err := r.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("reading log level: %w", err)
	}
	h.LogLevel = LogLevel(level)
	if !h.LogLevel.Valid() {
		return nil, fmt.Errorf("handshake carries undefined log level ordinal %d", level)
	}

	if h.PublishProcessInfo, err = r.ReadBool(); err != nil {
		return nil, fmt.Errorf("reading process info flag: %w", err)
	}
	if h.EngineHome, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("reading engine home: %w", err)
	}
	if h.Callback, err = addr.Read(r); err != nil {
		return nil, fmt.Errorf("reading callback address: %w", err)
	}

	envelope, err := r.ReadBinary()
	if err != nil {
		return nil, fmt.Errorf("reading work descriptor: %w", err)
	}
	if err := serial.Unmarshal(envelope, &h.Work); err != nil {
		return nil, fmt.Errorf("decoding work descriptor: %w", err)
	}
	// A nil envelope decodes cleanly (the graph codec round-trips typed
	// nil pointers) but a handshake without work is unusable.
	if h.Work == nil {
		return nil, fmt.Errorf("handshake carries no work descriptor")
	}

	return h, nil
}
