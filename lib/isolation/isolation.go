// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package isolation describes the layered visibility structure of a
// worker process as pure data. A Structure is a chain of nested scopes —
// "what symbols are visible from here" — independent of any live
// namespace object, so it can cross the process boundary inside a work
// envelope and be replayed on the other side to reconstruct an
// equivalent layering.
//
// The worker's standard layering has three tiers, parent to child:
//
//	           system
//	 (bootstrap entry point and the
//	  full application classpath)
//	              |
//	           filter
//	    (shared package patterns)
//	              |
//	       implementation
//	 (the work's own classes and the
//	  worker-side runtime services)
//
// The filter tier narrows visibility to the explicitly shared packages,
// keeping engine internals out of user code and user internals out of
// the engine.
package isolation

import (
	"strings"

	"github.com/quarry-build/quarry/lib/serial"
)

// Scope is one visibility layer: a set of package patterns admitted from
// the parent plus the classpath loaded into the layer itself.
type Scope struct {
	// Name identifies the scope in logs and diagnostics ("system",
	// "filter", "implementation", or application-defined).
	Name string

	// VisiblePackages lists the package name patterns visible from the
	// parent scope. A pattern admits the package itself and everything
	// below it ("com.example.api" admits "com.example.api.v2"). Empty
	// means the parent is fully visible.
	VisiblePackages []string

	// Classpath lists the entry URLs loaded into this scope, in
	// resolution order.
	Classpath []string
}

// Structure is a node in the namespace tree. It is pure data: Parent
// links form the chain from this scope up to the outermost one, and Flat
// marks a structure whose Resolve collapses the chain into a single
// merged scope instead of a chained hierarchy.
type Structure struct {
	Scope  Scope
	Parent *Structure
	Flat   bool
}

func init() {
	serial.Register(Structure{})
	serial.RegisterName("[]*isolation.Structure", []*Structure(nil))
}

// NewFlat returns a single merged scope: everything in one layer, no
// parent chain. Used when the work does not need engine/user separation.
func NewFlat(scope Scope) *Structure {
	return &Structure{Scope: scope, Flat: true}
}

// NewHierarchy returns the root of a chained structure.
func NewHierarchy(root Scope) *Structure {
	return &Structure{Scope: root}
}

// WithChild returns a new node layered under s. The receiver is not
// modified; structures grow leaf-ward so one parent chain can be shared
// by several children.
func (s *Structure) WithChild(scope Scope) *Structure {
	return &Structure{Scope: scope, Parent: s}
}

// Depth returns the number of scopes in the chain ending at s.
func (s *Structure) Depth() int {
	depth := 0
	for node := s; node != nil; node = node.Parent {
		depth++
	}
	return depth
}

// Resolve replays the structure into its ordered scope chain, outermost
// first. This is the receiving process's view: each ResolvedScope knows
// which symbols it admits from above, so the chain reconstructs the
// layering the planner described without any live object crossing the
// boundary.
//
// A flat structure collapses: the whole parent chain merges into one
// scope carrying every classpath entry (outermost first) and no filter,
// since a merged scope has no parent boundary to filter against.
func (s *Structure) Resolve() []ResolvedScope {
	var chain []*Structure
	for node := s; node != nil; node = node.Parent {
		chain = append(chain, node)
	}

	if s.Flat {
		merged := ResolvedScope{Name: s.Scope.Name}
		for i := len(chain) - 1; i >= 0; i-- {
			merged.Classpath = append(merged.Classpath, chain[i].Scope.Classpath...)
		}
		return []ResolvedScope{merged}
	}

	resolved := make([]ResolvedScope, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		node := chain[i]
		resolved = append(resolved, ResolvedScope{
			Name:      node.Scope.Name,
			Classpath: node.Scope.Classpath,
			filter:    node.Scope.VisiblePackages,
		})
	}
	return resolved
}

// ResolvedScope is one layer of a replayed structure.
type ResolvedScope struct {
	Name      string
	Classpath []string
	filter    []string
}

// Admits reports whether a symbol in the given package is visible from
// this scope's parent. An empty filter admits everything.
func (r ResolvedScope) Admits(packageName string) bool {
	if len(r.filter) == 0 {
		return true
	}
	for _, pattern := range r.filter {
		if packageName == pattern || strings.HasPrefix(packageName, pattern+".") {
			return true
		}
	}
	return false
}

// Visible reports whether a symbol in the given package, defined in the
// outermost scope, is visible from the innermost scope of the chain:
// every intermediate filter must admit it.
func Visible(chain []ResolvedScope, packageName string) bool {
	for _, scope := range chain {
		if !scope.Admits(packageName) {
			return false
		}
	}
	return true
}
