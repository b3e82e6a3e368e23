// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vote implements popularity proofs and the fast/pi-delta voting
// algorithms that decide whether a candidate unit is popular: visible to
// a supermajority as of some later prime unit.
package vote

import (
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/unit"
)

// View is everything the voting algorithms need from the aggregator:
// ancestry, the prime-unit index, and the per-level common random
// permutation order (used by toss_coin's FDU search).
type View interface {
	relations.ForkingHeights
	N() int
	PrimesAtLevel(level int) map[int][]*unit.Unit
	// CRPOrder returns CRP[level]: a permutation of process indices.
	CRPOrder(level int) []int
	// FirstDealingUnit returns process p's dealing unit, if known.
	FirstDealingUnit(p int) *unit.Unit
	// TossCoin implements spec.md §4.6 toss_coin(Uc, U): threshold-coin
	// backed randomness with a simple_coin fallback. Implemented by the
	// aggregator because it alone knows FDU bookkeeping and tcoin state.
	TossCoin(uc, u *unit.Unit) bool
}

// Vote is a ternary decision value, per spec.md §4.5.
type Vote int

const (
	VoteNo    Vote = 0
	VoteYes   Vote = 1
	VoteBot   Vote = -1
	undefined Vote = -2
)

// primesBelow returns, among the prime units at level, those below u.
func primesBelow(v View, level int, u *unit.Unit) []*unit.Unit {
	var out []*unit.Unit
	for _, units := range v.PrimesAtLevel(level) {
		for _, w := range units {
			if relations.Below(w, u, v) {
				out = append(out, w)
			}
		}
	}
	return out
}

// ProvesPopularity reports whether v certifies that uc is visible to a
// supermajority as of v's level: a bounded DFS descending parents from v
// through nodes w with Below(uc, w), counting w's creator into a
// seen-processes set when level(w) <= level(v)-2, or level(w) ==
// level(v)-1 and w is prime.
func ProvesPopularity(uc, v *unit.Unit, view View, isPrime func(*unit.Unit) bool) bool {
	if !relations.Below(uc, v, view) || v.Level <= uc.Level {
		return false
	}

	n := view.N()
	seen := make(map[int]bool, n)
	visited := make(map[*unit.Unit]bool)
	stack := []*unit.Unit{v}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[w] {
			continue
		}
		visited[w] = true

		if !relations.Below(uc, w, view) {
			continue
		}

		counts := w.Level <= v.Level-2 || (w.Level == v.Level-1 && isPrime(w))
		if counts && !seen[w.CreatorID] {
			seen[w.CreatorID] = true
			if posetcfg.Supermajority(len(seen), n) {
				return true
			}
		}
		stack = append(stack, w.Parents...)
	}
	return false
}

// VoteFor computes vote(u, uc) for round r = level(u) - level(uc) - t.
func VoteFor(u, uc *unit.Unit, view View, t int, isPrime func(*unit.Unit) bool) Vote {
	r := u.Level - uc.Level - t
	if r == 0 {
		if ProvesPopularity(uc, u, view, isPrime) {
			return VoteYes
		}
		return VoteNo
	}

	counts := [3]int{} // index by Vote+1: Bot=0, No=1, Yes=2
	primes := primesBelow(view, u.Level-1, u)
	for _, w := range primes {
		vw := VoteFor(w, uc, view, t, isPrime)
		if vw == VoteBot {
			vw = DefaultVote(w, uc, view, t)
		}
		counts[vw+1]++
	}
	return superMajority(counts, view.N())
}

// DefaultVote computes default_vote(u, uc) for round r' = level(u) -
// level(uc) - t.
func DefaultVote(u, uc *unit.Unit, view View, t int) Vote {
	r := u.Level - uc.Level - t
	switch {
	case r == 1:
		return VoteYes
	case r == 2:
		return VoteNo
	default:
		if SimpleCoin(uc, u.Level) {
			return VoteYes
		}
		return VoteNo
	}
}

// superMajority returns the vote a multiset agrees on by 2N/3, or VoteBot
// if neither 1 nor 0 reaches it.
func superMajority(counts [3]int, n int) Vote {
	if posetcfg.Supermajority(counts[VoteYes+1], n) {
		return VoteYes
	}
	if posetcfg.Supermajority(counts[VoteNo+1], n) {
		return VoteNo
	}
	return VoteBot
}

// SimpleCoin extracts the (level mod 8*len(hash))-th bit of uc's hash —
// the non-threshold coin fallback.
func SimpleCoin(uc *unit.Unit, level int) bool {
	h := uc.Hash()
	nbits := 8 * len(h)
	bit := ((level % nbits) + nbits) % nbits
	byteIdx := bit / 8
	bitIdx := uint(bit % 8)
	return (h[byteIdx]>>bitIdx)&1 == 1
}

// ComputePi computes pi(uc, u) at pi-round r = level(u) - (level(uc) +
// piDeltaLevel) + 1.
func ComputePi(uc, u *unit.Unit, view View, t, piDeltaLevel int, isPrime func(*unit.Unit) bool) Vote {
	r := u.Level - (uc.Level + piDeltaLevel) + 1
	primes := primesBelow(view, u.Level-1, u)

	var values []Vote
	if r == 1 {
		for _, w := range primes {
			vw := VoteFor(w, uc, view, t, isPrime)
			if vw == VoteBot {
				vw = DefaultVote(w, uc, view, t)
			}
			values = append(values, vw)
		}
	} else {
		for _, w := range primes {
			values = append(values, ComputePi(uc, w, view, t, piDeltaLevel, isPrime))
		}
	}

	if r%2 == 1 {
		counts := [3]int{}
		for _, val := range values {
			counts[val+1]++
		}
		return superMajority(counts, view.N())
	}
	return existsTC(values, uc, u, view)
}

// existsTC implements exists_tc: the first of {1,0} present in votes,
// else a shared-randomness coin toss.
func existsTC(values []Vote, uc, u *unit.Unit, view View) Vote {
	sawYes, sawNo := false, false
	for _, v := range values {
		if v == VoteYes {
			sawYes = true
		}
		if v == VoteNo {
			sawNo = true
		}
	}
	if sawYes {
		return VoteYes
	}
	if sawNo {
		return VoteNo
	}
	if view.TossCoin(uc, u) {
		return VoteYes
	}
	return VoteNo
}

// ComputeDelta computes delta(uc, u) (always an even pi-round):
// super_majority of pi-values at level(u)-1 below u.
func ComputeDelta(uc, u *unit.Unit, view View, t, piDeltaLevel int, isPrime func(*unit.Unit) bool) Vote {
	primes := primesBelow(view, u.Level-1, u)
	counts := [3]int{}
	for _, w := range primes {
		pi := ComputePi(uc, w, view, t, piDeltaLevel, isPrime)
		counts[pi+1]++
	}
	return superMajority(counts, view.N())
}

// DecideUnitIsPopular implements spec.md §4.5's three-phase decision:
// fast-positive window, fast algorithm, then pi/delta. levelReached is
// the highest level the poset has assigned to any unit so far.
func DecideUnitIsPopular(uc *unit.Unit, view View, t, piDeltaLevel, levelReached int, isPrime func(*unit.Unit) bool) Vote {
	// Phase 1: fast-positive window [level(uc)+2, level(uc)+t-1].
	for l := uc.Level + 2; l <= uc.Level+t-1 && l <= levelReached; l++ {
		for _, u := range view.PrimesAtLevel(l) {
			for _, cand := range u {
				if ProvesPopularity(uc, cand, view, isPrime) {
					return VoteYes
				}
			}
		}
	}

	// Phase 2: fast algorithm [level(uc)+t+1, min(level(uc)+piDeltaLevel,
	// levelReached)].
	upper := uc.Level + piDeltaLevel
	if levelReached < upper {
		upper = levelReached
	}
	for l := uc.Level + t + 1; l <= upper; l++ {
		for _, units := range view.PrimesAtLevel(l) {
			for _, cand := range units {
				vw := VoteFor(cand, uc, view, t, isPrime)
				if vw == DefaultVote(cand, uc, view, t) {
					return vw
				}
			}
		}
	}

	// Phase 3: pi/delta, levels from level(uc)+piDeltaLevel+1 stepping by 2.
	for l := uc.Level + piDeltaLevel + 1; l <= levelReached; l += 2 {
		for _, units := range view.PrimesAtLevel(l) {
			for _, cand := range units {
				d := ComputeDelta(uc, cand, view, t, piDeltaLevel, isPrime)
				if d == VoteYes || d == VoteNo {
					return d
				}
			}
		}
	}

	return VoteBot
}
