// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package unit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDealingUnit(t *testing.T) {
	u := NewDealingUnit(2, 4, []byte("payload"), nil)
	require.True(t, u.IsDealing())
	require.Nil(t, u.SelfPredecessor())
	require.Equal(t, uint64(0), u.Height)
	require.Equal(t, 0, u.Level)
}

func TestNewUnitHeight(t *testing.T) {
	d := NewDealingUnit(0, 4, nil, nil)
	child := NewUnit(0, []*Unit{d}, nil)
	require.Equal(t, uint64(1), child.Height)
	require.Equal(t, d, child.SelfPredecessor())
	require.Equal(t, -1, child.Level)
}

func TestHashStableUntilShareSet(t *testing.T) {
	d := NewDealingUnit(0, 4, []byte("p"), nil)
	h1 := d.Hash()
	h2 := d.Hash()
	require.Equal(t, h1, h2)

	d.SetShare([]byte("share"))
	h3 := d.Hash()
	require.NotEqual(t, h1, h3)
}

func TestHashDistinguishesPayload(t *testing.T) {
	a := NewDealingUnit(0, 4, []byte("a"), nil)
	b := NewDealingUnit(0, 4, []byte("b"), nil)
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestShortNameIsStableAndBracketed(t *testing.T) {
	u := NewDealingUnit(1, 4, []byte("x"), nil)
	name := u.ShortName()
	require.True(t, len(name) >= 2)
	require.Equal(t, byte('<'), name[0])
	require.Equal(t, byte('>'), name[len(name)-1])
	require.Equal(t, name, ShortNameOf(u.Hash()))
}
