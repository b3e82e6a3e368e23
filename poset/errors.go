// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poset

import "errors"

// Error taxonomy per spec.md §7. MalformedUnit and ComplianceViolation
// causes are returned unwrapped from the compliance package and wrapped
// here only for the cases the aggregator itself detects (unknown
// parents, duplicate delivery is a no-op rather than an error).
var (
	// ErrUnknownParent is returned by Prepare when a unit references a
	// parent hash the aggregator has not installed yet. The transport is
	// expected to buffer and retry (spec.md §6).
	ErrUnknownParent = errors.New("poset: unknown parent")

	// ErrAlreadyInstalled is never returned as a failure: re-delivering an
	// installed unit is defined as a no-op (spec.md §8 idempotence law).
	// Add does not return it either; Add reports a re-delivery as
	// installed == false with a nil error.
	ErrAlreadyInstalled = errors.New("poset: unit already installed")

	// ErrCoinCombineFailure is logged at warning level and triggers a
	// simple_coin fallback; it is never propagated to callers.
	ErrCoinCombineFailure = errors.New("poset: threshold coin combine failed")

	// ErrRoundNotReady is returned by TimingRound when index k is beyond
	// the committed frontier.
	ErrRoundNotReady = errors.New("poset: timing round not yet decided")

	// ErrDumpMalformed is returned by Load on an unparseable dump.
	ErrDumpMalformed = errors.New("poset: malformed dump")
)
