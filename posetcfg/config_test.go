// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package posetcfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig(4)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 3, cfg.VotingLevel)
	require.Equal(t, 12, cfg.PiDeltaLevel)
	require.Equal(t, 11, cfg.AddShares)
}

func TestValidateCatchesEachError(t *testing.T) {
	base := DefaultConfig(4)

	zeroN := base
	zeroN.N = 0
	require.ErrorIs(t, zeroN.Validate(), ErrNTooLow)

	badProcess := base
	badProcess.ProcessID = 9
	require.ErrorIs(t, badProcess.Validate(), ErrProcessIDInvalid)

	missingProcess := base
	missingProcess.ProcessID = 9
	missingProcess.UseTCoin = true
	require.ErrorIs(t, missingProcess.Validate(), ErrProcessIDMissing)

	lowVoting := base
	lowVoting.VotingLevel = 0
	require.ErrorIs(t, lowVoting.Validate(), ErrVotingLevelLow)

	lowPiDelta := base
	lowPiDelta.PiDeltaLevel = lowPiDelta.VotingLevel
	require.ErrorIs(t, lowPiDelta.Validate(), ErrPiDeltaLevelLow)

	lowAddShares := base
	lowAddShares.AddShares = 0
	require.ErrorIs(t, lowAddShares.Validate(), ErrAddSharesLow)
}

func TestSupermajority(t *testing.T) {
	require.True(t, Supermajority(3, 4))
	require.False(t, Supermajority(2, 4))
	require.True(t, Supermajority(7, 10))
	require.False(t, Supermajority(6, 10))
}
