// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the unit of work the engine delegates to a
// worker process and the envelope that carries it across the process
// boundary.
//
// A work item exists in two forms. A LiveSpec holds the resolved
// implementation and live parameter values; it is only valid inside the
// process that will execute it. A TransportableSpec is a pure transport
// value — display name, implementation name, serialized parameter bytes,
// and the isolation structure — usable before the implementation is ever
// resolved. Transport converts live to transportable on the sending
// side; Rehydrate converts back on the receiving side, resolving the
// implementation by name in the receiver's own registry and decoding the
// parameters with the receiver's own codec session.
package action

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quarry-build/quarry/lib/isolation"
	"github.com/quarry-build/quarry/lib/serial"
)

// Work is a unit of executable work. Implementations are registered by
// name; the worker process resolves the name from its envelope and
// executes the implementation with the decoded parameters.
type Work interface {
	Execute(ctx context.Context, params any) error
}

// ErrTransportOnly is returned by the live-only accessors of a
// TransportableSpec. A transportable spec never resolves its
// implementation or parameters — that is the receiving process's job,
// after rehydration. Hitting this error signals misuse, not a recoverable
// condition.
var ErrTransportOnly = errors.New("spec is transport-only: rehydrate it before accessing the implementation or parameters")

// Spec is a work item in either form. DisplayName, ImplementationName,
// and Structure always succeed and are side-effect-free; Implementation
// and Params succeed only on a live spec.
type Spec interface {
	DisplayName() string
	ImplementationName() string
	Structure() *isolation.Structure
	Implementation() (Work, error)
	Params() (any, error)
}

// registry maps implementation names to factories. Process-wide, like
// the serial type registry it parallels: the sending and receiving
// processes each register the implementations they know.
var registry sync.Map // string -> func() Work

// Register makes an implementation resolvable by name. The factory is
// invoked once per execution.
func Register(name string, factory func() Work) {
	if name == "" {
		panic("action: Register called with empty name")
	}
	if _, loaded := registry.LoadOrStore(name, factory); loaded {
		panic(fmt.Sprintf("action: implementation %q registered twice", name))
	}
}

// Lookup resolves an implementation name to its factory.
func Lookup(name string) (func() Work, error) {
	factory, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("no implementation registered under %q", name)
	}
	return factory.(func() Work), nil
}

// LiveSpec holds a resolved implementation and live parameter values.
// Valid only inside the process that will execute it; it never crosses a
// process boundary.
type LiveSpec struct {
	displayName        string
	implementationName string
	implementation     Work
	params             any
	structure          *isolation.Structure
}

// NewLiveSpec builds a live spec, resolving the implementation name in
// this process's registry.
func NewLiveSpec(displayName, implementationName string, params any, structure *isolation.Structure) (*LiveSpec, error) {
	factory, err := Lookup(implementationName)
	if err != nil {
		return nil, fmt.Errorf("building live spec %q: %w", displayName, err)
	}
	return &LiveSpec{
		displayName:        displayName,
		implementationName: implementationName,
		implementation:     factory(),
		params:             params,
		structure:          structure,
	}, nil
}

func (s *LiveSpec) DisplayName() string             { return s.displayName }
func (s *LiveSpec) ImplementationName() string      { return s.implementationName }
func (s *LiveSpec) Structure() *isolation.Structure { return s.structure }

// Implementation returns the resolved work implementation.
func (s *LiveSpec) Implementation() (Work, error) { return s.implementation, nil }

// Params returns the live parameter values.
func (s *LiveSpec) Params() (any, error) { return s.params, nil }

// TransportableSpec is the envelope form: every field is representable
// without loading the implementation, so it can be built, serialized,
// shipped, and inspected in a process that has never seen the
// implementation's code.
type TransportableSpec struct {
	Name                 string
	Impl                 string
	SerializedParameters []byte
	ClassLoaderStructure *isolation.Structure
}

func init() {
	serial.Register(TransportableSpec{})
}

func (s *TransportableSpec) DisplayName() string             { return s.Name }
func (s *TransportableSpec) ImplementationName() string      { return s.Impl }
func (s *TransportableSpec) Structure() *isolation.Structure { return s.ClassLoaderStructure }

// SerializedParams returns the opaque parameter bytes. They are only
// meaningful to a codec session matching the one that produced them.
func (s *TransportableSpec) SerializedParams() []byte { return s.SerializedParameters }

// Implementation always fails on the transportable form.
func (s *TransportableSpec) Implementation() (Work, error) {
	return nil, fmt.Errorf("%q: %w", s.Name, ErrTransportOnly)
}

// Params always fails on the transportable form.
func (s *TransportableSpec) Params() (any, error) {
	return nil, fmt.Errorf("%q: %w", s.Name, ErrTransportOnly)
}

// Transport converts a live spec into its envelope, serializing the
// parameters through a fresh encode session against this process's view
// of the values.
func Transport(live *LiveSpec) (*TransportableSpec, error) {
	params, err := live.Params()
	if err != nil {
		return nil, err
	}
	serialized, err := serial.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("serializing parameters of %q: %w", live.DisplayName(), err)
	}
	return &TransportableSpec{
		Name:                 live.DisplayName(),
		Impl:                 live.ImplementationName(),
		SerializedParameters: serialized,
		ClassLoaderStructure: live.Structure(),
	}, nil
}

// Rehydrate converts an envelope back into a live spec in the receiving
// process: the implementation is resolved by name in this process's
// registry and the parameters are decoded through this process's own
// session.
func Rehydrate(spec *TransportableSpec) (*LiveSpec, error) {
	var params any
	if err := serial.Unmarshal(spec.SerializedParameters, &params); err != nil {
		return nil, fmt.Errorf("decoding parameters of %q: %w", spec.Name, err)
	}
	live, err := NewLiveSpec(spec.Name, spec.Impl, params, spec.ClassLoaderStructure)
	if err != nil {
		return nil, fmt.Errorf("rehydrating %q: %w", spec.Name, err)
	}
	return live, nil
}
