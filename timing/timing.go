// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timing implements the per-level timing-unit decision: iterate
// committee processes in their level-L common random permutation order,
// and for each process's prime units (sorted by hash) ask whether the
// candidate is popular. The first "popular" candidate is the timing
// unit; any "undecided" candidate aborts the whole level.
package timing

import (
	"bytes"
	"sort"

	"github.com/luxfi/poset/crp"
	"github.com/luxfi/poset/unit"
	"github.com/luxfi/poset/vote"
)

// Decide runs the timing decision for level l. It returns the elected
// timing unit and true on a positive decision, (nil, false) if the level
// cannot yet be concluded (including the level_reached < l+t guard).
func Decide(l int, n, t, piDeltaLevel, levelReached int, seeder crp.Seeder, primesAtLevel map[int][]*unit.Unit, view vote.View, isPrime func(*unit.Unit) bool) (*unit.Unit, bool) {
	if levelReached < l+t {
		return nil, false
	}

	order := crp.Permutation(seeder, l, n)
	for _, p := range order {
		candidates := sortedByHash(primesAtLevel[p])
		for _, uc := range candidates {
			switch vote.DecideUnitIsPopular(uc, view, t, piDeltaLevel, levelReached, isPrime) {
			case vote.VoteYes:
				return uc, true
			case vote.VoteBot:
				return nil, false
			default:
				// VoteNo: continue to the next candidate, then process.
			}
		}
	}
	return nil, false
}

func sortedByHash(units []*unit.Unit) []*unit.Unit {
	out := make([]*unit.Unit, len(units))
	copy(out, units)
	sort.Slice(out, func(i, j int) bool {
		hi, hj := out[i].Hash(), out[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})
	return out
}
