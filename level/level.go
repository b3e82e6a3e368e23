// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package level implements level assignment: level(dealing) = 0;
// otherwise a unit's level is one more than the max level of its parents
// iff a 2N/3 supermajority of processes have a level-m prime unit below
// the new unit.
package level

import (
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/unit"
)

// PrimeIndex answers, for a level m, the prime units at that level
// created by each process. The aggregator maintains this index
// (prime_units_by_level[L][p] in spec.md §3) and passes it down here so
// level assignment never walks the whole DAG.
type PrimeIndex interface {
	PrimesAtLevel(level int) map[int][]*unit.Unit
}

// Assign computes level(u) given its parents, an index of prime units
// per level, and the below relation. It stops early once the remaining
// processes cannot lift the support count to a supermajority, per
// spec.md §4.3.
func Assign(u *unit.Unit, n int, primes PrimeIndex, fh relations.ForkingHeights) int {
	if u.IsDealing() {
		return 0
	}

	m := 0
	for _, p := range u.Parents {
		if p.Level > m {
			m = p.Level
		}
	}

	byProcess := primes.PrimesAtLevel(m)
	count := 0
	for process := 0; process < n; process++ {
		remaining := n - process
		if 3*count >= 2*n || 3*(count+remaining) < 2*n {
			break
		}
		for _, v := range byProcess[process] {
			if relations.Below(v, u, fh) {
				count++
				break
			}
		}
	}

	if posetcfg.Supermajority(count, n) {
		return m + 1
	}
	return m
}

// IsPrime reports whether u is prime: a dealing unit, or a unit whose
// level strictly exceeds its self-predecessor's level.
func IsPrime(u *unit.Unit) bool {
	if u.IsDealing() {
		return true
	}
	sp := u.SelfPredecessor()
	return u.Level > sp.Level
}
