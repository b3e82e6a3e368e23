// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package floor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/poset/unit"
)

func chain(creator int, n int, length int) []*unit.Unit {
	units := make([]*unit.Unit, length)
	units[0] = unit.NewDealingUnit(creator, n, nil, nil)
	units[0].Floor = make([][]*unit.Unit, n)
	units[0].Floor[creator] = []*unit.Unit{units[0]}
	for i := 1; i < length; i++ {
		units[i] = unit.NewUnit(creator, []*unit.Unit{units[i-1]}, nil)
		units[i].Floor = make([][]*unit.Unit, n)
		units[i].Floor[creator] = []*unit.Unit{units[i]}
	}
	return units
}

func TestBelowWithinProcessNoFork(t *testing.T) {
	c := chain(0, 4, 5)
	require.True(t, BelowWithinProcess(c[1], c[3], -1))
	require.False(t, BelowWithinProcess(c[3], c[1], -1))
	require.True(t, BelowWithinProcess(c[2], c[2], -1))
}

func TestBelowWithinProcessForkingHeightShortCircuit(t *testing.T) {
	c := chain(0, 4, 5)
	// Strictly below the fork height, the shortcut still applies without
	// walking the chain.
	require.True(t, BelowWithinProcess(c[1], c[3], 2))
}

func TestBelowWithinProcessNoShortCircuitAtForkHeight(t *testing.T) {
	c := chain(0, 4, 2) // c[0] dealing (height 0), c[1] (height 1)

	// Two units forked off c[1] at height 2: incomparable siblings.
	forkA := unit.NewUnit(0, []*unit.Unit{c[1]}, nil)
	forkB := unit.NewUnit(0, []*unit.Unit{c[1]}, nil)

	// At exactly the fork height, spec.md §4.1 requires a strict walk, not
	// the shortcut: forkA and forkB must not be reported as related.
	require.False(t, BelowWithinProcess(forkA, forkB, 2))
	require.False(t, BelowWithinProcess(forkB, forkA, 2))
}

func TestComputeMergesParentFloors(t *testing.T) {
	n := 3
	a := chain(0, n, 2)
	b := chain(1, n, 2)

	// a[1] and b[1] each see only their own chain.
	parent1 := a[1]
	parent2 := b[1]

	child := unit.NewUnit(0, []*unit.Unit{parent1, parent2}, nil)
	Compute(child, n, []int{-1, -1, -1})

	require.Equal(t, []*unit.Unit{child}, child.Floor[0])
	require.Equal(t, []*unit.Unit{parent2}, child.Floor[1])
	require.Empty(t, child.Floor[2])
}

func TestHasForkingEvidence(t *testing.T) {
	a, b := &unit.Unit{}, &unit.Unit{}
	u := &unit.Unit{Floor: [][]*unit.Unit{{}, {a, b}}}
	require.False(t, HasForkingEvidence(u, 0))
	require.True(t, HasForkingEvidence(u, 1))
}
