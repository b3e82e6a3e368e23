// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relations implements the below/above ancestry relations over
// the poset DAG, built on top of the floor structure (package floor).
package relations

import (
	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/unit"
)

// ForkingHeights supplies, for a given process, the lowest height at
// which it has been observed to fork, or a negative value if it has not.
type ForkingHeights interface {
	ForkingHeight(process int) int
}

// Below reports whether u is below-or-equal v: some maximal unit by
// u.CreatorID in v's floor has u in its self-chain.
func Below(u, v *unit.Unit, fh ForkingHeights) bool {
	forkingHeight := fh.ForkingHeight(u.CreatorID)
	for _, w := range v.Floor[u.CreatorID] {
		if floor.BelowWithinProcess(u, w, forkingHeight) {
			return true
		}
	}
	return false
}

// Above reports whether u is above-or-equal v, i.e. Below(v, u).
func Above(u, v *unit.Unit, fh ForkingHeights) bool {
	return Below(v, u, fh)
}
