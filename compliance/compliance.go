// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package compliance implements the six ordered, fail-fast compliance
// checks a candidate unit must pass before the aggregator installs it.
package compliance

import (
	"errors"

	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/unit"
)

// Errors returned by Check, matching spec.md §7's MalformedUnit and
// ComplianceViolation categories. Callers distinguish them with errors.Is.
var (
	ErrDanglingParent      = errors.New("compliance: parent not installed")
	ErrBadSelfPredecessor  = errors.New("compliance: self-predecessor shape violated")
	ErrDuplicateParentProc = errors.New("compliance: duplicate parent creator")
	ErrBadCoinShape        = errors.New("compliance: malformed coin-share bundle")
	ErrSelfForkingEvidence = errors.New("compliance: unit proves its own creator forks")
	ErrForkerMuted         = errors.New("compliance: parent carries forking evidence for another parent")
	ErrExpandPrimesViolated = errors.New("compliance: parent contributes no new prime unit")
	ErrCoinShareShape      = errors.New("compliance: coin-share count does not match level gate")
)

// PrimeIndex supplies, for a (level, process) pair, the process's prime
// units at that level below a given unit — needed by the expand-primes
// rule (check 5).
type PrimeIndex interface {
	PrimesAtLevelBelow(level, process int, below *unit.Unit, fh relations.ForkingHeights) []*unit.Unit
}

// Check runs the six rules of spec.md §4.4 in order, short-circuiting on
// the first failure. Parents must already be resolved into u.Parents; a
// nil entry is reported as ErrDanglingParent. isPrime decides primality
// for the coin-share rule (check 6).
func Check(u *unit.Unit, n int, fh relations.ForkingHeights, primes PrimeIndex, rules posetcfg.ComplianceRules, addShares int, isPrime func(*unit.Unit) bool) error {
	if err := checkParentCorrectness(u, n); err != nil {
		return err
	}

	if u.IsDealing() {
		return checkDealtCoinShape(u, rules)
	}

	if err := checkNoSelfForkingEvidence(u); err != nil {
		return err
	}

	if rules.ForkerMuting {
		if err := checkForkerMuting(u); err != nil {
			return err
		}
	}

	if rules.ExpandPrimes {
		if err := checkExpandPrimes(u, fh, primes); err != nil {
			return err
		}
	}

	if err := checkCoinShareShape(u, addShares, isPrime); err != nil {
		return err
	}

	return nil
}

// checkParentCorrectness implements rule 1: every parent exists (assumed
// already resolved into u.Parents by the caller), the self-predecessor
// shape holds, and parents are from pairwise distinct creators.
func checkParentCorrectness(u *unit.Unit, n int) error {
	for _, p := range u.Parents {
		if p == nil {
			return ErrDanglingParent
		}
	}
	if len(u.Parents) == 0 {
		return nil
	}
	sp := u.Parents[0]
	if sp.CreatorID != u.CreatorID || sp.Height+1 != u.Height {
		return ErrBadSelfPredecessor
	}
	if len(u.Parents) >= 2 {
		seen := make(map[int]bool, len(u.Parents))
		for _, p := range u.Parents {
			if seen[p.CreatorID] {
				return ErrDuplicateParentProc
			}
			seen[p.CreatorID] = true
		}
	}
	_ = n
	return nil
}

// checkDealtCoinShape implements rule 2: a dealing unit's only remaining
// check is the shape of its coin bundle, when threshold coin is enabled.
func checkDealtCoinShape(u *unit.Unit, rules posetcfg.ComplianceRules) error {
	if !rules.ThresholdCoin {
		return nil
	}
	if u.Coin.Kind != unit.CoinDealt || u.Coin.Dealt == nil {
		return ErrBadCoinShape
	}
	d := u.Coin.Dealt
	n := len(d.VKs)
	if len(d.VK) == 0 || n == 0 || len(d.SKs) != n {
		return ErrBadCoinShape
	}
	return nil
}

// checkNoSelfForkingEvidence implements rule 3: merging parents' floors
// for u's own creator must yield a single maximal element, otherwise u
// would prove its own creator forks.
func checkNoSelfForkingEvidence(u *unit.Unit) error {
	var merged []*unit.Unit
	for _, p := range u.Parents {
		for _, cand := range p.Floor[u.CreatorID] {
			merged = mergeSelf(merged, cand)
		}
	}
	if len(merged) > 1 {
		return ErrSelfForkingEvidence
	}
	return nil
}

func mergeSelf(set []*unit.Unit, cand *unit.Unit) []*unit.Unit {
	for i, existing := range set {
		if existing == cand {
			return set
		}
		if cand.Height > existing.Height && floor.StrictBelowWithinProcess(existing, cand) {
			set[i] = cand
			return set
		}
		if cand.Height <= existing.Height && floor.StrictBelowWithinProcess(cand, existing) {
			return set
		}
	}
	return append(set, cand)
}

// checkForkerMuting implements rule 4: for every parent V and every
// process q that is a parent's creator, V must not carry forking
// evidence for q.
func checkForkerMuting(u *unit.Unit) error {
	for _, v := range u.Parents {
		for _, q := range u.Parents {
			if floor.HasForkingEvidence(v, q.CreatorID) {
				return ErrForkerMuted
			}
		}
	}
	return nil
}

// checkExpandPrimes implements rule 5: iterating parents after the
// first, each must contribute at least one new prime unit at the
// running level.
func checkExpandPrimes(u *unit.Unit, fh relations.ForkingHeights, primes PrimeIndex) error {
	if len(u.Parents) < 2 {
		return nil
	}
	sp := u.Parents[0]
	l := sp.Level
	seen := primes.PrimesAtLevelBelow(l, -1, sp, fh) // process=-1: all processes
	seenSet := toSet(seen)

	for _, v := range u.Parents[1:] {
		if v.Level > l {
			l = v.Level
			seenSet = make(map[*unit.Unit]bool)
		}
		q := primes.PrimesAtLevelBelow(l, -1, v, fh)
		novel := false
		for _, w := range q {
			if !seenSet[w] {
				novel = true
				seenSet[w] = true
			}
		}
		if !novel {
			return ErrExpandPrimesViolated
		}
	}
	return nil
}

func toSet(units []*unit.Unit) map[*unit.Unit]bool {
	m := make(map[*unit.Unit]bool, len(units))
	for _, u := range units {
		m[u] = true
	}
	return m
}

// checkCoinShareShape implements rule 6: a prime unit at level >=
// addShares must carry exactly one share; every other unit carries none.
func checkCoinShareShape(u *unit.Unit, addShares int, isPrime func(*unit.Unit) bool) error {
	wantsShare := isPrime(u) && u.Level >= addShares
	switch {
	case wantsShare && u.Coin.Kind != unit.CoinShare:
		return ErrCoinShareShape
	case !wantsShare && u.Coin.Kind == unit.CoinShare:
		return ErrCoinShareShape
	}
	return nil
}
