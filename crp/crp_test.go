// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crp

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermutationIsDeterministicAndComplete(t *testing.T) {
	seeder := FixedSeeder([]byte("genesis"))
	n := 7

	p1 := Permutation(seeder, 5, n)
	p2 := Permutation(seeder, 5, n)
	require.Equal(t, p1, p2)

	sorted := append([]int(nil), p1...)
	sort.Ints(sorted)
	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, sorted)
}

func TestPermutationVariesByLevelAndSeed(t *testing.T) {
	seeder := FixedSeeder([]byte("genesis"))
	n := 10

	p0 := Permutation(seeder, 0, n)
	p1 := Permutation(seeder, 1, n)
	require.NotEqual(t, p0, p1)

	other := FixedSeeder([]byte("other-genesis"))
	q0 := Permutation(other, 0, n)
	require.NotEqual(t, p0, q0)
}
