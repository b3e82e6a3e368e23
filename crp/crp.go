// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crp implements the common random permutation: for each level L
// a deterministic permutation of {0..N-1}, seeded so that it cannot be
// predicted before level L-1 has produced its randomness.
package crp

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// Seeder supplies the randomness a level's permutation is derived from.
// The poset aggregator implements this using the previous level's timing
// unit hash (or a fixed genesis seed while no timing unit exists yet),
// which is exactly the "unpredictable before L-1" property required.
type Seeder interface {
	SeedForLevel(level int) []byte
}

// Permutation returns CRP[level]: a permutation of {0..n-1}, deterministic
// given seeder.SeedForLevel(level) and n.
func Permutation(seeder Seeder, level, n int) []int {
	seed := seeder.SeedForLevel(level)
	keys := make([][32]byte, n)
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		keys[i] = processKey(seed, level, i)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lessKey(keys[idx[a]], keys[idx[b]])
	})
	return idx
}

func processKey(seed []byte, level, process int) [32]byte {
	h := sha256.New()
	h.Write(seed)
	var lvlBuf, procBuf [8]byte
	binary.BigEndian.PutUint64(lvlBuf[:], uint64(level))
	binary.BigEndian.PutUint64(procBuf[:], uint64(process))
	h.Write(lvlBuf[:])
	h.Write(procBuf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func lessKey(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// FixedSeeder is a Seeder that always returns the same seed, suitable for
// the genesis levels before any timing unit exists or for tests.
type FixedSeeder []byte

func (s FixedSeeder) SeedForLevel(int) []byte { return []byte(s) }
