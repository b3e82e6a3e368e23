// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/poset/crp"
	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/unit"
	"github.com/luxfi/poset/vote"
)

type fakeView struct {
	n      int
	fh     []int
	primes map[int]map[int][]*unit.Unit
}

func (v *fakeView) ForkingHeight(p int) int                  { return v.fh[p] }
func (v *fakeView) N() int                                   { return v.n }
func (v *fakeView) PrimesAtLevel(l int) map[int][]*unit.Unit { return v.primes[l] }
func (v *fakeView) CRPOrder(l int) []int                     { return crp.Permutation(crp.FixedSeeder("seed"), l, v.n) }
func (v *fakeView) FirstDealingUnit(int) *unit.Unit          { return nil }
func (v *fakeView) TossCoin(uc, u *unit.Unit) bool           { return false }

func isPrimeByLevelJump(u *unit.Unit) bool {
	sp := u.SelfPredecessor()
	if sp == nil {
		return true
	}
	return u.Level > sp.Level
}

func TestDecideBlocksUntilLevelReached(t *testing.T) {
	n := 4
	fh := []int{-1, -1, -1, -1}
	v := &fakeView{n: n, fh: fh, primes: map[int]map[int][]*unit.Unit{}}

	_, ok := Decide(0, n, 3, 12, 2 /* levelReached */, crp.FixedSeeder("seed"), v.primes[0], v, isPrimeByLevelJump)
	require.False(t, ok)
}

func TestDecideElectsFirstPopularCandidateInCRPOrder(t *testing.T) {
	n := 4
	fh := []int{-1, -1, -1, -1}
	v := &fakeView{n: n, fh: fh, primes: map[int]map[int][]*unit.Unit{}}

	dealers := make([]*unit.Unit, n)
	for i := 0; i < n; i++ {
		dealers[i] = unit.NewDealingUnit(i, n, nil, nil)
		dealers[i].Floor = make([][]*unit.Unit, n)
		dealers[i].Floor[i] = []*unit.Unit{dealers[i]}
		v.primes[0] = map[int][]*unit.Unit{}
	}
	for i, d := range dealers {
		v.primes[0][i] = []*unit.Unit{d}
	}

	level1 := make([]*unit.Unit, n)
	v.primes[1] = map[int][]*unit.Unit{}
	for i := 0; i < n; i++ {
		parents := make([]*unit.Unit, 0, n)
		parents = append(parents, dealers[i])
		for j := 0; j < n; j++ {
			if j != i {
				parents = append(parents, dealers[j])
			}
		}
		u := unit.NewUnit(i, parents, nil)
		floor.Compute(u, n, fh)
		u.Level = 1
		level1[i] = u
		v.primes[1][i] = []*unit.Unit{u}
	}

	level2 := make([]*unit.Unit, n)
	v.primes[2] = map[int][]*unit.Unit{}
	for i := 0; i < n; i++ {
		parents := make([]*unit.Unit, 0, n)
		parents = append(parents, level1[i])
		for j := 0; j < n; j++ {
			if j != i {
				parents = append(parents, level1[j])
			}
		}
		u := unit.NewUnit(i, parents, nil)
		floor.Compute(u, n, fh)
		u.Level = 2
		level2[i] = u
		v.primes[2][i] = []*unit.Unit{u}
	}

	// Every level-0 dealer is visible to all four level-1 prime units, so
	// with the spec-default voting level (t=3) the fast-positive window
	// [level(uc)+2, level(uc)+2] lands exactly on level 2 and
	// vote.ProvesPopularity fires immediately.
	t_ := 3
	uc, ok := Decide(0, n, t_, 12, 3, crp.FixedSeeder("seed"), v.primes[0], v, isPrimeByLevelJump)
	require.True(t, ok)
	require.NotNil(t, uc)
	require.Equal(t, 0, uc.Level)
	require.True(t, vote.ProvesPopularity(uc, level2[0], v, isPrimeByLevelJump))
}
