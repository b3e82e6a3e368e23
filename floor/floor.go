// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package floor computes and maintains the per-process floor of a unit:
// the set of maximal ancestors by each process in the unit's lower-cone.
// Floors power ancestry queries (package relations) and fork detection.
package floor

import "github.com/luxfi/poset/unit"

// BelowWithinProcess decides whether U is below-or-equal V along the
// chain of a single process, using forkingHeight to short-circuit the
// common non-forking case. Both U and V must share a creator.
//
// forkingHeight is the lowest height at which U.CreatorID has been
// observed to fork, or -1 if it has never been observed to fork.
func BelowWithinProcess(u, v *unit.Unit, forkingHeight int) bool {
	if u.Height > v.Height {
		return false
	}
	if forkingHeight < 0 || u.Height < uint64(forkingHeight) {
		return true
	}
	w := v
	for w.Height > u.Height {
		w = w.SelfPredecessor()
		if w == nil {
			return false
		}
	}
	return w == u
}

// StrictBelowWithinProcess decides below-or-equal along a single
// process's chain by always walking self-predecessors, never taking the
// forkingHeight-based shortcut BelowWithinProcess uses. It is the
// primitive the compliance validator needs for detecting forking
// evidence in the first place (spec.md §4.4 rule 3): that check cannot
// rely on an "assume no fork" optimization, since its entire purpose is
// to catch the first time a fork becomes visible.
func StrictBelowWithinProcess(u, v *unit.Unit) bool {
	if u.Height > v.Height {
		return false
	}
	w := v
	for w.Height > u.Height {
		w = w.SelfPredecessor()
		if w == nil {
			return false
		}
	}
	return w == u
}

// Compute derives U.Floor by merging parents' floors and reducing to
// maximal elements under BelowWithinProcess, as specified in spec.md
// §4.1: scan candidates; a candidate replaces an existing entry it
// dominates, is dropped if dominated, else appended.
//
// forkingHeight is the current forking-height table, indexed by process.
func Compute(u *unit.Unit, nProcesses int, forkingHeight []int) {
	result := make([][]*unit.Unit, nProcesses)
	result[u.CreatorID] = []*unit.Unit{u}

	for p := 0; p < nProcesses; p++ {
		if p == u.CreatorID {
			continue
		}
		var merged []*unit.Unit
		for _, parent := range u.Parents {
			for _, cand := range parent.Floor[p] {
				merged = mergeCandidate(merged, cand, forkingHeight[p])
			}
		}
		result[p] = merged
	}
	u.Floor = result
}

// mergeCandidate inserts cand into the running maximal-antichain set,
// dropping it if dominated by an existing entry, replacing a
// dominated entry, or appending if incomparable with everything seen.
func mergeCandidate(set []*unit.Unit, cand *unit.Unit, forkingHeight int) []*unit.Unit {
	for i, existing := range set {
		if existing == cand {
			return set
		}
		if cand.Height > existing.Height && BelowWithinProcess(existing, cand, forkingHeight) {
			set[i] = cand
			return set
		}
		if cand.Height <= existing.Height && BelowWithinProcess(cand, existing, forkingHeight) {
			return set
		}
	}
	return append(set, cand)
}

// HasForkingEvidence reports whether U's floor proves that process p has
// forked: more than one maximal unit by p in U's lower-cone.
func HasForkingEvidence(u *unit.Unit, p int) bool {
	return len(u.Floor[p]) > 1
}
