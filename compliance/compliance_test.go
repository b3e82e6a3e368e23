// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package compliance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/unit"
)

type fixedForks []int

func (f fixedForks) ForkingHeight(p int) int { return f[p] }

type noPrimes struct{}

func (noPrimes) PrimesAtLevelBelow(int, int, *unit.Unit, relations.ForkingHeights) []*unit.Unit {
	return nil
}

func isPrimeAlways(*unit.Unit) bool { return true }

func dealer(n, creator int) *unit.Unit {
	d := unit.NewDealingUnit(creator, n, nil, nil)
	d.Floor = make([][]*unit.Unit, n)
	d.Floor[creator] = []*unit.Unit{d}
	return d
}

func TestCheckAcceptsCleanDealingUnit(t *testing.T) {
	d := dealer(4, 0)
	rules := posetcfg.ComplianceRules{}
	err := Check(d, 4, fixedForks{-1, -1, -1, -1}, noPrimes{}, rules, 11, isPrimeAlways)
	require.NoError(t, err)
}

func TestCheckRejectsBadSelfPredecessor(t *testing.T) {
	n := 4
	other := dealer(n, 1)
	bad := &unit.Unit{CreatorID: 0, Parents: []*unit.Unit{other}, Height: 5}

	err := Check(bad, n, fixedForks{-1, -1, -1, -1}, noPrimes{}, posetcfg.DefaultComplianceRules(), 11, isPrimeAlways)
	require.ErrorIs(t, err, ErrBadSelfPredecessor)
}

func TestCheckRejectsDuplicateParentCreator(t *testing.T) {
	n := 4
	d0 := dealer(n, 0)
	d1a := dealer(n, 1)
	d1b := dealer(n, 1)

	bad := unit.NewUnit(0, []*unit.Unit{d0, d1a, d1b}, nil)
	err := Check(bad, n, fixedForks{-1, -1, -1, -1}, noPrimes{}, posetcfg.DefaultComplianceRules(), 11, isPrimeAlways)
	require.ErrorIs(t, err, ErrDuplicateParentProc)
}

func TestCheckRejectsSelfForkingEvidence(t *testing.T) {
	n := 3
	fh := []int{-1, -1, -1}

	// f1 and f2 are two distinct dealing units from the same creator: a
	// fork at height 0.
	f1 := dealer(n, 1)
	f2 := dealer(n, 1)

	otherDealer := dealer(n, 0)
	otherParent := unit.NewUnit(0, []*unit.Unit{otherDealer, f2}, nil)
	floor.Compute(otherParent, n, fh)

	// child's self-predecessor is f1; its other parent's lower-cone
	// contains f2 instead, so their merged floor[1] carries both forks.
	child := unit.NewUnit(1, []*unit.Unit{f1, otherParent}, nil)

	err := Check(child, n, fixedForks(fh), noPrimes{}, posetcfg.DefaultComplianceRules(), 11, isPrimeAlways)
	require.ErrorIs(t, err, ErrSelfForkingEvidence)
}

func TestCheckRejectsForkerMuting(t *testing.T) {
	n := 3
	fh := fixedForks{-1, -1, -1}

	d0 := dealer(n, 0)
	d2a := dealer(n, 2)
	d2b := dealer(n, 2)

	// v already carries forking evidence for creator 2 (two maximal units
	// in its floor for process 2).
	v := dealer(n, 1)
	v.Floor[2] = []*unit.Unit{d2a, d2b}

	q := dealer(n, 2)

	u := unit.NewUnit(0, []*unit.Unit{d0, v, q}, nil)
	rules := posetcfg.ComplianceRules{ForkerMuting: true}

	err := Check(u, n, fh, noPrimes{}, rules, 11, isPrimeAlways)
	require.ErrorIs(t, err, ErrForkerMuted)
}

// samePrimes returns the same fixed set of prime units for every
// PrimesAtLevelBelow call, regardless of which unit is queried — used to
// simulate a second parent that contributes no unit beyond what the
// first parent already contributed.
type samePrimes []*unit.Unit

func (s samePrimes) PrimesAtLevelBelow(int, int, *unit.Unit, relations.ForkingHeights) []*unit.Unit {
	return s
}

func TestCheckRejectsExpandPrimesViolation(t *testing.T) {
	n := 3
	fh := fixedForks{-1, -1, -1}

	sp := dealer(n, 0)
	v := dealer(n, 1)
	shared := dealer(n, 2)

	u := unit.NewUnit(0, []*unit.Unit{sp, v}, nil)
	rules := posetcfg.ComplianceRules{ExpandPrimes: true}

	err := Check(u, n, fh, samePrimes{shared}, rules, 11, isPrimeAlways)
	require.ErrorIs(t, err, ErrExpandPrimesViolated)
}

func TestCheckCoinShareShape(t *testing.T) {
	n := 4
	d := dealer(n, 0)
	child := unit.NewUnit(0, []*unit.Unit{d}, nil)
	floor.Compute(child, n, []int{-1, -1, -1, -1})
	child.Level = 12

	isPrime := func(u *unit.Unit) bool { return true }
	rules := posetcfg.ComplianceRules{}

	err := Check(child, n, fixedForks{-1, -1, -1, -1}, noPrimes{}, rules, 11, isPrime)
	require.ErrorIs(t, err, ErrCoinShareShape)

	child.SetShare([]byte("share"))
	err = Check(child, n, fixedForks{-1, -1, -1, -1}, noPrimes{}, rules, 11, isPrime)
	require.NoError(t, err)
}
