// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package unit implements the immutable DAG node of the poset: creator,
// parents, payload, optional coin-share material, and the derived fields
// (hash, level, floor, height) the aggregator fills in at prepare/add time.
package unit

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"

	"github.com/luxfi/ids"
)

// CoinKind tags the variant carried in a unit's coin-share field. A
// dealing unit carries a dealt threshold-coin bundle; a non-dealing prime
// unit at or above AddShares carries exactly one share; every other unit
// carries none.
type CoinKind uint8

const (
	CoinNone CoinKind = iota
	CoinDealt
	CoinShare
)

// DealtBundle is the threshold-coin material a dealing unit publishes:
// the group verification key, one verification key per process, and one
// secret-key share per process (own only; others are opaque to peers but
// carried so they can forward it, mirroring the Python PoC's
// coin_shares == {'vk':..., 'vks':[...], 'sks':[...]} dict).
type DealtBundle struct {
	VK  []byte
	VKs [][]byte
	SKs [][]byte
}

// CoinPayload is the tagged variant stored on a Unit.
type CoinPayload struct {
	Kind  CoinKind
	Dealt *DealtBundle
	Share []byte
}

// Unit is the atomic node of the poset DAG. Once installed by the
// aggregator it is immutable except for the lazily-computed hash cache.
type Unit struct {
	CreatorID int
	Parents   []*Unit
	Height    uint64
	Payload   []byte
	Signature []byte
	Coin      CoinPayload

	// Level is the round number assigned by the level-assignment component.
	// -1 means "not yet computed".
	Level int

	// Floor[p] holds the maximal units by process p in U's lower-cone.
	// len(Floor[p]) > 1 means U proves p forks.
	Floor [][]*Unit

	hash      ids.ID
	hashValid bool
}

// NewDealingUnit creates the bottom unit of creatorID's chain. Dealing
// units have no parents, height 0, and level 0.
func NewDealingUnit(creatorID int, nProcesses int, payload []byte, coin *DealtBundle) *Unit {
	u := &Unit{
		CreatorID: creatorID,
		Parents:   nil,
		Height:    0,
		Payload:   payload,
		Level:     0,
		Floor:     make([][]*Unit, nProcesses),
	}
	if coin != nil {
		u.Coin = CoinPayload{Kind: CoinDealt, Dealt: coin}
	}
	u.Floor[creatorID] = nil // filled in by the floor engine with [u] itself
	return u
}

// NewUnit creates a non-dealing unit. parents[0] must be the creator's
// self-predecessor (invariant 1 of the data model). Height is set here
// from parents[0]; Level is left at -1 for the aggregator to assign.
func NewUnit(creatorID int, parents []*Unit, payload []byte) *Unit {
	var height uint64
	if len(parents) > 0 {
		height = parents[0].Height + 1
	}
	return &Unit{
		CreatorID: creatorID,
		Parents:   parents,
		Height:    height,
		Payload:   payload,
		Level:     -1,
	}
}

// IsDealing reports whether U is a dealing unit (no parents).
func (u *Unit) IsDealing() bool {
	return len(u.Parents) == 0
}

// SelfPredecessor returns parents[0], or nil for a dealing unit.
func (u *Unit) SelfPredecessor() *Unit {
	if len(u.Parents) == 0 {
		return nil
	}
	return u.Parents[0]
}

// SetShare attaches a non-dealing coin share to U and invalidates the hash
// cache, mirroring the Python Unit.coin_shares setter.
func (u *Unit) SetShare(share []byte) {
	u.Coin = CoinPayload{Kind: CoinShare, Share: share}
	u.hashValid = false
}

// InvalidateHash forces the next Hash() call to recompute.
func (u *Unit) InvalidateHash() {
	u.hashValid = false
}

// Hash returns the collision-resistant content digest of U: creator_id,
// parent hashes, serialized coin-share, and payload. Cached until the
// coin-share is mutated.
func (u *Unit) Hash() ids.ID {
	if u.hashValid {
		return u.hash
	}
	h := sha256.New()

	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], uint64(u.CreatorID))
	h.Write(idBuf[:])

	for _, p := range u.Parents {
		ph := p.Hash()
		h.Write(ph[:])
	}

	writeCoin(h, u.Coin)
	h.Write(u.Payload)

	sum := h.Sum(nil)
	copy(u.hash[:], sum)
	u.hashValid = true
	return u.hash
}

func writeCoin(h interface{ Write([]byte) (int, error) }, c CoinPayload) {
	switch c.Kind {
	case CoinDealt:
		h.Write([]byte{byte(CoinDealt)})
		if c.Dealt != nil {
			h.Write(c.Dealt.VK)
			for _, vk := range c.Dealt.VKs {
				h.Write(vk)
			}
			for _, sk := range c.Dealt.SKs {
				h.Write(sk)
			}
		}
	case CoinShare:
		h.Write([]byte{byte(CoinShare)})
		h.Write(c.Share)
	default:
		h.Write([]byte{byte(CoinNone)})
	}
}

// shortEncoding matches the Python PoC's pretty_hash: RFC4648
// base32 (A-Z, 2-7), which is exactly the Go standard encoding.
var shortEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ShortName renders a 12-character, bracket-wrapped identifier derived
// from the first 8 bytes of U's hash, for logs and dumps.
func (u *Unit) ShortName() string {
	return ShortNameOf(u.Hash())
}

// ShortNameOf renders the short name for an arbitrary hash, so the dump
// format can name units purely from their stored hash.
func ShortNameOf(h ids.ID) string {
	enc := shortEncoding.EncodeToString(h[:8])
	if len(enc) > 12 {
		enc = enc[:12]
	}
	return "<" + enc + ">"
}
