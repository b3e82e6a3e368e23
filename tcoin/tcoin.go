// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tcoin implements the per-dealer threshold coin: a k-of-N shared
// pseudorandom bit source used by the pi/delta voting algorithm to break
// ties once the fast path runs out of levels. Shares are threshold
// signatures over (dealerHash, level); combining k valid shares yields a
// signature whose hash supplies the unpredictable bit.
package tcoin

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/threshold"
	_ "github.com/luxfi/crypto/threshold/bls" // registers the BLS threshold scheme
)

// Scheme is the threshold scheme identifier used for coin tosses. BLS
// threshold signatures give a compact, deterministically-aggregatable
// share, matching the "dealt threshold-coin bundle" of spec.md §3.
const Scheme = threshold.SchemeBLS

// ErrWrongShareCount names the case of a share count other than the
// dealer's k. Combine does not return it; it reports that case as
// ok == false.
var ErrWrongShareCount = errors.New("tcoin: need exactly k shares to combine")

// K returns the threshold for a committee of size n: floor(n/3) + 1.
func K(n int) int {
	return n/3 + 1
}

// ThresholdCoin is the per-dealer coin extracted from a dealt bundle: a
// BLS threshold scheme bound to that dealer's group key, able to verify
// individual shares and combine k of them into a pseudorandom bit.
type ThresholdCoin struct {
	dealerHash [32]byte
	n          int
	k          int
	scheme     threshold.Scheme
	groupKey   threshold.PublicKey
	verifier   threshold.Verifier
	// shareVerifiers[i] verifies shares signed by process i's key share,
	// derived from vks[i] carried in the dealing unit.
	shareVerifiers []threshold.Verifier
	// signers[i] is only populated for the local process (len(signers)==n
	// with nil entries for processes whose secret share we don't hold).
	signers []threshold.Signer
}

// DealtKeys is what a trusted dealer produces: one key share per process
// and the group public verification key. This is exactly the {vk, vks,
// sks} bundle a dealing unit carries, prior to serialization.
type DealtKeys struct {
	GroupKey threshold.PublicKey
	Shares   []threshold.KeyShare
}

// Deal runs a trusted dealer for a committee of size n, producing n key
// shares and a group key, matching the Python PoC's dealing-unit coin
// material. Used only by test harnesses and the local-process "create my
// own dealing unit" path — real deployments would use a DKG instead.
func Deal(n int) (DealtKeys, error) {
	scheme, err := threshold.GetScheme(Scheme)
	if err != nil {
		return DealtKeys{}, fmt.Errorf("tcoin: get scheme: %w", err)
	}
	dealer, err := scheme.NewTrustedDealer(threshold.DealerConfig{
		Threshold:    K(n),
		TotalParties: n,
	})
	if err != nil {
		return DealtKeys{}, fmt.Errorf("tcoin: new dealer: %w", err)
	}
	shares, groupKey, err := dealer.GenerateShares(context.Background())
	if err != nil {
		return DealtKeys{}, fmt.Errorf("tcoin: generate shares: %w", err)
	}
	return DealtKeys{GroupKey: groupKey, Shares: shares}, nil
}

// FromBundle reconstructs a ThresholdCoin from a dealing unit's carried
// {vk, vks, sks} bundle, for the process identified by localIndex (-1 if
// this process holds no secret share, e.g. it only verifies).
func FromBundle(dealerHash [32]byte, n int, vk []byte, vks [][]byte, sks [][]byte, localIndex int) (*ThresholdCoin, error) {
	scheme, err := threshold.GetScheme(Scheme)
	if err != nil {
		return nil, fmt.Errorf("tcoin: get scheme: %w", err)
	}
	groupKey, err := scheme.PublicKeyFromBytes(vk)
	if err != nil {
		return nil, fmt.Errorf("tcoin: decode group key: %w", err)
	}
	verifier, err := scheme.NewVerifier(groupKey)
	if err != nil {
		return nil, fmt.Errorf("tcoin: new verifier: %w", err)
	}

	tc := &ThresholdCoin{
		dealerHash:     dealerHash,
		n:              n,
		k:              K(n),
		scheme:         scheme,
		groupKey:       groupKey,
		verifier:       verifier,
		shareVerifiers: make([]threshold.Verifier, n),
		signers:        make([]threshold.Signer, n),
	}
	for i := 0; i < n && i < len(vks); i++ {
		pk, err := scheme.PublicKeyFromBytes(vks[i])
		if err != nil {
			return nil, fmt.Errorf("tcoin: decode vks[%d]: %w", i, err)
		}
		sv, err := scheme.NewVerifier(pk)
		if err != nil {
			return nil, fmt.Errorf("tcoin: share verifier %d: %w", i, err)
		}
		tc.shareVerifiers[i] = sv
	}
	if localIndex >= 0 && localIndex < len(sks) && sks[localIndex] != nil {
		share, err := scheme.KeyShareFromBytes(sks[localIndex])
		if err != nil {
			return nil, fmt.Errorf("tcoin: decode sks[%d]: %w", localIndex, err)
		}
		signer, err := scheme.NewSigner(share)
		if err != nil {
			return nil, fmt.Errorf("tcoin: new signer: %w", err)
		}
		tc.signers[localIndex] = signer
	}
	return tc, nil
}

// message canonicalizes (dealerHash, level) into the bytes that are
// signed/verified for a coin toss at that level.
func message(dealerHash [32]byte, level int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(level))
	msg := make([]byte, 0, 40)
	msg = append(msg, dealerHash[:]...)
	msg = append(msg, buf[:]...)
	return msg
}

// CreateShare produces signerID's share for a coin toss at level,
// deterministic in (secret key, level).
func (tc *ThresholdCoin) CreateShare(ctx context.Context, signerID, level int) ([]byte, error) {
	if signerID < 0 || signerID >= len(tc.signers) || tc.signers[signerID] == nil {
		return nil, fmt.Errorf("tcoin: no secret share held for signer %d", signerID)
	}
	share, err := tc.signers[signerID].SignShare(ctx, message(tc.dealerHash, level), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("tcoin: sign share: %w", err)
	}
	return share.Bytes(), nil
}

// VerifyShare checks signerID's share for a coin toss at level against
// that process's verification key.
func (tc *ThresholdCoin) VerifyShare(share []byte, signerID, level int) bool {
	if signerID < 0 || signerID >= len(tc.shareVerifiers) || tc.shareVerifiers[signerID] == nil {
		return false
	}
	return tc.shareVerifiers[signerID].VerifyBytes(message(tc.dealerHash, level), share)
}

// Combine requires exactly k valid shares and returns a pseudorandom bit
// unpredictable before k honest shares were published.
func (tc *ThresholdCoin) Combine(ctx context.Context, shares [][]byte, level int) (bit bool, ok bool) {
	if len(shares) != tc.k {
		return false, false
	}
	msg := message(tc.dealerHash, level)
	sigShares := make([]threshold.SignatureShare, 0, len(shares))
	for _, raw := range shares {
		ss, err := tc.scheme.SignatureShareFromBytes(raw)
		if err != nil {
			return false, false
		}
		sigShares = append(sigShares, ss)
	}
	aggregator, err := tc.scheme.NewAggregator(tc.groupKey)
	if err != nil {
		return false, false
	}
	sig, err := aggregator.Aggregate(ctx, msg, sigShares, nil)
	if err != nil {
		return false, false
	}
	if !tc.verifier.VerifyBytes(msg, sig.Bytes()) {
		return false, false
	}
	return bitOf(sig.Bytes()), true
}

// bitOf derives a single pseudorandom bit from combined signature bytes.
func bitOf(sig []byte) bool {
	sum := sha256.Sum256(sig)
	return sum[0]&1 == 1
}
