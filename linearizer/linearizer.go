// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package linearizer flattens a finalized slice of the DAG (everything
// between two consecutive timing units) into the deterministic linear
// order every honest replica will compute byte-identically.
package linearizer

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/unit"
)

// TimingRound returns the units at-or-below timingK but not at-or-below
// timingPrev (nil for k=0, the genesis round): flood from timingK through
// parents, pruning any path already below timingPrev.
func TimingRound(timingK, timingPrev *unit.Unit, fh relations.ForkingHeights) []*unit.Unit {
	visited := make(map[*unit.Unit]bool)
	var result []*unit.Unit
	stack := []*unit.Unit{timingK}

	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[u] {
			continue
		}
		if timingPrev != nil && relations.Below(u, timingPrev, fh) {
			visited[u] = true
			continue
		}
		visited[u] = true
		result = append(result, u)
		stack = append(stack, u.Parents...)
	}
	return result
}

// BreakTies produces the deterministic linear order for a round's unit
// set: a random-oracle tiebreaker derived from the concatenation of all
// sorted unit hashes, then a topological flush emitting, wave by wave,
// the current orphans (units whose in-set parents have all been
// emitted) sorted by tiebreaker ascending.
func BreakTies(units []*unit.Unit) []*unit.Unit {
	if len(units) == 0 {
		return nil
	}

	hashes := make([][32]byte, len(units))
	for i, u := range units {
		hashes[i] = u.Hash()
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	rHash := sha256.New()
	for _, h := range hashes {
		rHash.Write(h[:])
	}
	r := rHash.Sum(nil)

	tiebreaker := func(u *unit.Unit) [32]byte {
		h := u.Hash()
		tb := sha256.New()
		tb.Write(h[:])
		tb.Write(r)
		var out [32]byte
		copy(out[:], tb.Sum(nil))
		return out
	}

	inSet := make(map[*unit.Unit]bool, len(units))
	for _, u := range units {
		inSet[u] = true
	}

	remainingParents := make(map[*unit.Unit]int, len(units))
	children := make(map[*unit.Unit][]*unit.Unit, len(units))
	for _, u := range units {
		count := 0
		for _, p := range u.Parents {
			if inSet[p] {
				count++
				children[p] = append(children[p], u)
			}
		}
		remainingParents[u] = count
	}

	var order []*unit.Unit
	var wave []*unit.Unit
	for _, u := range units {
		if remainingParents[u] == 0 {
			wave = append(wave, u)
		}
	}

	emitted := make(map[*unit.Unit]bool, len(units))
	for len(wave) > 0 {
		sort.Slice(wave, func(i, j int) bool {
			ti, tj := tiebreaker(wave[i]), tiebreaker(wave[j])
			return bytes.Compare(ti[:], tj[:]) < 0
		})

		var next []*unit.Unit
		for _, u := range wave {
			if emitted[u] {
				continue
			}
			emitted[u] = true
			order = append(order, u)
			for _, c := range children[u] {
				remainingParents[c]--
				if remainingParents[c] == 0 {
					next = append(next, c)
				}
			}
		}
		wave = next
	}

	return order
}
