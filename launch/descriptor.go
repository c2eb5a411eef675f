// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"

	"github.com/quarry-build/quarry/lib/action"
)

// Descriptor is everything the planner needs to launch one worker.
// Built by the engine per launch; the planner adds the callback address
// and turns the rest into the handshake.
type Descriptor struct {
	// DisplayName identifies the launch in logs and the process
	// registry ("worker 3 for compile").
	DisplayName string

	// ApplicationClasspath lists the entries the worker runtime itself
	// is started with. Delivered via argument file or command-line
	// injection depending on the runtime's capability, never through
	// the handshake.
	ApplicationClasspath []string

	// SharedPackages lists the package patterns the filter scope admits
	// from the application classpath into the work's implementation
	// scope.
	SharedPackages []string

	// ImplementationClasspath lists the entries loaded into the work's
	// own scope. Delivered inside the handshake; the worker assembles
	// the scope after bootstrap.
	ImplementationClasspath []string

	// LogLevel is the worker's logging threshold.
	LogLevel LogLevel

	// PublishProcessInfo tells the worker to register itself in the
	// engine home's process registry once the handshake completes.
	PublishProcessInfo bool

	// EngineHome is the engine home directory the worker should use for
	// its registry and scratch space.
	EngineHome string

	// Work is the unit of work the worker executes, already in
	// transport form.
	Work *action.TransportableSpec
}

// Validate checks the descriptor for the errors the planner would
// otherwise hit mid-launch.
func (d *Descriptor) Validate() error {
	if d.DisplayName == "" {
		return fmt.Errorf("launch descriptor has no display name")
	}
	if !d.LogLevel.Valid() {
		return fmt.Errorf("launch %q: invalid log level %d", d.DisplayName, int(d.LogLevel))
	}
	if d.EngineHome == "" {
		return fmt.Errorf("launch %q: engine home not set", d.DisplayName)
	}
	if d.Work == nil {
		return fmt.Errorf("launch %q: no work attached", d.DisplayName)
	}
	return nil
}
