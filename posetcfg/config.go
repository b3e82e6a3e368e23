// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package posetcfg defines the configuration surface for the poset
// consensus core: committee size, this process's identity, and the
// tunable level offsets that drive the fast/pi-delta voting algorithms.
package posetcfg

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrNTooLow          = errors.New("n must be >= 1")
	ErrProcessIDInvalid = errors.New("process_id out of range")
	ErrProcessIDMissing = errors.New("process_id is required when threshold coin is enabled")
	ErrVotingLevelLow   = errors.New("voting level must be >= 1")
	ErrPiDeltaLevelLow  = errors.New("pi_delta_level must be > voting_level")
	ErrAddSharesLow     = errors.New("add_shares must be >= 1")
)

// ComplianceRules toggles individual compliance checks. All default on;
// tests and experiments may disable one at a time to isolate a rule.
type ComplianceRules struct {
	ForkerMuting  bool
	ExpandPrimes  bool
	ThresholdCoin bool
}

// DefaultComplianceRules returns the default-on rule set.
func DefaultComplianceRules() ComplianceRules {
	return ComplianceRules{
		ForkerMuting:  true,
		ExpandPrimes:  true,
		ThresholdCoin: true,
	}
}

// Config carries every tunable of the poset core. It is immutable once
// validated; callers construct one with DefaultConfig and override fields
// before the first call into the aggregator.
type Config struct {
	// N is the committee size.
	N int
	// ProcessID is this process's index in {0..N-1}. Required if UseTCoin.
	ProcessID int
	// UseTCoin enables the threshold-coin path in the pi/delta algorithm.
	UseTCoin bool
	// Rules overrides the default compliance rule set.
	Rules ComplianceRules

	// VotingLevel (t) is the fast-algorithm start offset. Default 3.
	VotingLevel int
	// PiDeltaLevel is the level offset at which the core switches from the
	// fast algorithm to the randomized pi/delta algorithm. Default 12.
	PiDeltaLevel int
	// AddShares is the earliest prime-unit level carrying a coin share.
	// Default PiDeltaLevel-1.
	AddShares int
}

// DefaultConfig returns a Config for a committee of size n with the
// spec-default level offsets and all compliance rules enabled.
func DefaultConfig(n int) Config {
	const (
		votingLevel  = 3
		piDeltaLevel = 12
	)
	return Config{
		N:            n,
		ProcessID:    0,
		UseTCoin:     false,
		Rules:        DefaultComplianceRules(),
		VotingLevel:  votingLevel,
		PiDeltaLevel: piDeltaLevel,
		AddShares:    piDeltaLevel - 1,
	}
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	if c.N < 1 {
		return ErrNTooLow
	}
	if c.ProcessID < 0 || c.ProcessID >= c.N {
		if c.UseTCoin {
			return ErrProcessIDMissing
		}
		return fmt.Errorf("%w: got %d, want [0,%d)", ErrProcessIDInvalid, c.ProcessID, c.N)
	}
	if c.VotingLevel < 1 {
		return ErrVotingLevelLow
	}
	if c.PiDeltaLevel <= c.VotingLevel {
		return ErrPiDeltaLevelLow
	}
	if c.AddShares < 1 {
		return ErrAddSharesLow
	}
	return nil
}

// Supermajority reports whether count out of the committee's N processes
// constitutes a 2N/3 supermajority, using integer comparison to avoid
// floating point division.
func Supermajority(count, n int) bool {
	return 3*count >= 2*n
}
