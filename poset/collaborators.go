// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poset

import "github.com/luxfi/poset/unit"

// UnitSource is the transport collaborator named in spec.md §6: it
// supplies candidate units whose parents have already been substituted
// from hashes to installed unit references. When a parent is missing the
// transport is expected to buffer the candidate and retry later; the
// core never blocks waiting for one.
type UnitSource interface {
	// Deliver is called by the transport for each candidate unit ready
	// for the core to prepare/validate/install.
	Deliver(u *unit.Unit) error
}

// Batch is one committed round: the level whose timing unit was just
// decided, and the deterministic linear order of units released with it.
type Batch struct {
	Level int
	Units []*unit.Unit
}

// UnitSink is the application collaborator: the commit stream of spec.md
// §6. Its batches are the ones AttemptTimingDecision returns; Poset does
// not call Apply itself.
type UnitSink interface {
	Apply(Batch) error
}
