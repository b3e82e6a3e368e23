// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poset implements the aggregator: the single owner of the unit
// index, floor/level/prime tables, threshold coins, and timing frontier.
// It is the one mutable shared structure in the core (spec.md §5); all
// mutation is serialized behind mu, all read-only queries take a shared
// read lock.
package poset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/ids"
	rlog "github.com/luxfi/log"

	"github.com/luxfi/poset/compliance"
	"github.com/luxfi/poset/crp"
	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/level"
	"github.com/luxfi/poset/linearizer"
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/relations"
	"github.com/luxfi/poset/tcoin"
	"github.com/luxfi/poset/timing"
	"github.com/luxfi/poset/unit"
	"github.com/luxfi/poset/vote"

	"github.com/prometheus/client_golang/prometheus"
)

// Poset is the aggregator described in spec.md §2/§4.8: it owns the unit
// DAG and every derived index, and exposes Prepare/CheckCompliance/Add/
// AttemptTimingDecision/TimingRound/Dump.
type Poset struct {
	mu sync.RWMutex

	cfg posetcfg.Config
	log rlog.Logger
	met *metrics

	units       map[ids.ID]*unit.Unit
	insertOrder []*unit.Unit

	dealingUnits       [][]*unit.Unit
	maxUnitsPerProcess [][]*unit.Unit
	forkingHeight      []int // -1 means "no fork observed"

	primeUnitsByLevel map[int]map[int][]*unit.Unit // level -> process -> units, sorted by hash

	thresholdCoins map[ids.ID]*tcoin.ThresholdCoin // dealing-unit hash -> coin
	genesisSeed    []byte

	timingUnits            []*unit.Unit
	levelTimingEstablished int
	levelReached           int
}

// New creates an empty Poset for the given configuration. genesisSeed
// seeds CRP[0] (there is no level -1 timing unit to derive randomness
// from) and every later level whose previous level has no committed
// timing unit yet.
func New(cfg posetcfg.Config, logger rlog.Logger, registerer prometheus.Registerer, genesisSeed []byte) (*Poset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("poset: invalid config: %w", err)
	}
	if logger == nil {
		logger = rlog.NewNoOpLogger()
	}

	p := &Poset{
		cfg:                    cfg,
		log:                    logger,
		met:                    newMetrics(registerer),
		units:                  make(map[ids.ID]*unit.Unit),
		dealingUnits:           make([][]*unit.Unit, cfg.N),
		maxUnitsPerProcess:     make([][]*unit.Unit, cfg.N),
		forkingHeight:          makeUnset(cfg.N),
		primeUnitsByLevel:      make(map[int]map[int][]*unit.Unit),
		thresholdCoins:         make(map[ids.ID]*tcoin.ThresholdCoin),
		genesisSeed:            append([]byte(nil), genesisSeed...),
		levelTimingEstablished: -1,
		levelReached:           0,
	}
	return p, nil
}

func makeUnset(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

// --- relations.ForkingHeights / level.PrimeIndex / vote.View -----------

// ForkingHeight implements relations.ForkingHeights.
func (p *Poset) ForkingHeight(process int) int {
	return p.forkingHeight[process]
}

// N implements vote.View.
func (p *Poset) N() int { return p.cfg.N }

// PrimesAtLevel implements level.PrimeIndex and vote.View.
func (p *Poset) PrimesAtLevel(l int) map[int][]*unit.Unit {
	return p.primeUnitsByLevel[l]
}

// PrimesAtLevelBelow implements compliance.PrimeIndex. process < 0 means
// "units from every process", used by the expand-primes rule.
func (p *Poset) PrimesAtLevelBelow(l, process int, below *unit.Unit, fh relations.ForkingHeights) []*unit.Unit {
	byProcess := p.primeUnitsByLevel[l]
	var out []*unit.Unit
	if process >= 0 {
		for _, w := range byProcess[process] {
			if relations.Below(w, below, fh) {
				out = append(out, w)
			}
		}
		return out
	}
	for _, units := range byProcess {
		for _, w := range units {
			if relations.Below(w, below, fh) {
				out = append(out, w)
			}
		}
	}
	return out
}

// CRPOrder implements vote.View: CRP[level] seeded by the prior level's
// timing-unit hash once one exists, and by this poset's genesis seed
// otherwise.
func (p *Poset) CRPOrder(l int) []int {
	return crp.Permutation(p, l, p.cfg.N)
}

// SeedForLevel implements crp.Seeder.
func (p *Poset) SeedForLevel(l int) []byte {
	if l >= 1 && l-1 < len(p.timingUnits) && p.timingUnits[l-1] != nil {
		h := p.timingUnits[l-1].Hash()
		return h[:]
	}
	return p.genesisSeed
}

// FirstDealingUnit implements vote.View: returns process p's (first,
// under non-forking assumptions) dealing unit, or nil if none is known.
func (p *Poset) FirstDealingUnit(process int) *unit.Unit {
	if process < 0 || process >= len(p.dealingUnits) || len(p.dealingUnits[process]) == 0 {
		return nil
	}
	return p.dealingUnits[process][0]
}

func (p *Poset) isPrime(u *unit.Unit) bool {
	return level.IsPrime(u)
}

// --- Prepare / CheckCompliance / Add ------------------------------------

// Prepare fills in U's derived fields: height (already set by the
// constructors in package unit), floor, and level. Every parent must
// already be installed.
func (p *Poset) Prepare(u *unit.Unit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prepareLocked(u)
}

func (p *Poset) prepareLocked(u *unit.Unit) error {
	for _, parent := range u.Parents {
		if _, ok := p.units[parent.Hash()]; !ok {
			return ErrUnknownParent
		}
	}
	if u.IsDealing() {
		u.Floor = make([][]*unit.Unit, p.cfg.N)
		u.Floor[u.CreatorID] = []*unit.Unit{u}
	} else {
		floor.Compute(u, p.cfg.N, p.forkingHeight)
	}
	u.Level = level.Assign(u, p.cfg.N, p, p)
	return nil
}

// CheckCompliance runs the six compliance rules of spec.md §4.4 against
// an already-prepared unit.
func (p *Poset) CheckCompliance(u *unit.Unit) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	err := compliance.Check(u, p.cfg.N, p, p, p.cfg.Rules, p.cfg.AddShares, p.isPrime)
	if err != nil {
		p.met.incComplianceRejected()
	}
	return err
}

// Add installs a prepared, compliant unit into the DAG. Re-delivering an
// already-installed unit is a no-op (spec.md §8 idempotence law).
func (p *Poset) Add(u *unit.Unit) (installed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := u.Hash()
	if _, ok := p.units[h]; ok {
		return false, nil
	}

	p.units[h] = u
	p.insertOrder = append(p.insertOrder, u)
	p.recordForks(u)

	if u.IsDealing() {
		p.dealingUnits[u.CreatorID] = append(p.dealingUnits[u.CreatorID], u)
		if u.Coin.Kind == unit.CoinDealt {
			p.installThresholdCoin(u)
		}
	}

	if p.isPrime(u) {
		if p.primeUnitsByLevel[u.Level] == nil {
			p.primeUnitsByLevel[u.Level] = make(map[int][]*unit.Unit)
		}
		bucket := append(p.primeUnitsByLevel[u.Level][u.CreatorID], u)
		sort.Slice(bucket, func(i, j int) bool {
			hi, hj := bucket[i].Hash(), bucket[j].Hash()
			return lessBytes(hi[:], hj[:])
		})
		p.primeUnitsByLevel[u.Level][u.CreatorID] = bucket
	}

	if u.Level > p.levelReached {
		p.levelReached = u.Level
		p.met.setLevelReached(u.Level)
	}
	p.met.incUnitsInstalled()
	p.log.Debug("poset: installed unit", "unit", u.ShortName(), "creator", u.CreatorID, "level", u.Level)
	return true, nil
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// recordForks detects the two ForkObserved situations of spec.md §7: a
// second dealing unit from the same creator, or a non-dealing unit whose
// self-predecessor diverges from the creator's previously-known tips.
func (p *Poset) recordForks(u *unit.Unit) {
	c := u.CreatorID
	if u.IsDealing() {
		if len(p.dealingUnits[c]) >= 1 {
			p.markFork(c, 0)
		}
		return
	}

	sp := u.Parents[0]
	tips := p.maxUnitsPerProcess[c]
	found := false
	for _, t := range tips {
		if t == sp {
			found = true
			break
		}
	}
	if !found && len(tips) > 0 {
		p.markFork(c, sp.Height)
	}

	newTips := tips[:0:0]
	for _, t := range tips {
		if t != sp {
			newTips = append(newTips, t)
		}
	}
	p.maxUnitsPerProcess[c] = append(newTips, u)
}

func (p *Poset) markFork(process int, height uint64) {
	if p.forkingHeight[process] < 0 || int(height) < p.forkingHeight[process] {
		p.forkingHeight[process] = int(height)
	}
	p.met.incForksObserved()
	p.log.Warn("poset: fork observed", "process", process, "height", height)
}

func (p *Poset) installThresholdCoin(dealing *unit.Unit) {
	d := dealing.Coin.Dealt
	localIndex := -1
	if p.cfg.ProcessID >= 0 && p.cfg.ProcessID < len(d.SKs) {
		localIndex = p.cfg.ProcessID
	}
	coin, err := tcoin.FromBundle(dealing.Hash(), p.cfg.N, d.VK, d.VKs, d.SKs, localIndex)
	if err != nil {
		p.log.Error("poset: failed to install threshold coin", "dealer", dealing.CreatorID, "err", err)
		return
	}
	p.thresholdCoins[dealing.Hash()] = coin
}

// --- Below / relations --------------------------------------------------

// Below is the read-only ancestry query exposed to callers and tests.
func (p *Poset) Below(u, v *unit.Unit) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return relations.Below(u, v, p)
}

// --- Threshold coin toss (vote.View.TossCoin) ---------------------------

// TossCoin implements spec.md §4.6's toss_coin(Uc, U).
func (p *Poset) TossCoin(uc, u *unit.Unit) bool {
	if !p.cfg.UseTCoin || u.Level <= p.cfg.AddShares {
		return vote.SimpleCoin(u, u.Level)
	}

	l := u.Level - 1
	k := tcoin.K(p.cfg.N)

	var coin *tcoin.ThresholdCoin
	var dealingHash ids.ID
	haveDealing := false
	var shares [][]byte

collect:
	for _, units := range p.PrimesAtLevel(l) {
		for _, v := range units {
			if !relations.Below(v, u, p) {
				continue
			}
			fdu := p.firstDealingUnit(v)
			if fdu == nil {
				continue
			}
			h := fdu.Hash()
			if !haveDealing {
				dealingHash = h
				haveDealing = true
				coin = p.thresholdCoins[h]
			} else if h != dealingHash {
				continue
			}
			if coin == nil || v.Coin.Kind != unit.CoinShare {
				continue
			}
			if !coin.VerifyShare(v.Coin.Share, v.CreatorID, l) {
				continue
			}
			shares = append(shares, v.Coin.Share)
			if len(shares) == k {
				break collect
			}
		}
	}

	if coin != nil && len(shares) == k {
		if bit, ok := coin.Combine(context.Background(), shares, l); ok {
			return bit
		}
		p.met.incCoinCombineFallback()
		p.log.Warn("poset: threshold coin combine failed, falling back to simple_coin", "level", l)
	}
	return vote.SimpleCoin(uc, l)
}

// firstDealingUnit implements FDU(V) of spec.md §4.6: the first dealer in
// CRP[level(V)], skipping dealers for whom V carries forking evidence,
// whose dealing unit is below V.
func (p *Poset) firstDealingUnit(v *unit.Unit) *unit.Unit {
	for _, dealer := range p.CRPOrder(v.Level) {
		if floor.HasForkingEvidence(v, dealer) {
			continue
		}
		for _, du := range p.dealingUnits[dealer] {
			if relations.Below(du, v, p) {
				return du
			}
		}
	}
	return nil
}

// --- Timing decision & frontier advance ---------------------------------

// AttemptTimingDecision walks levels from levelTimingEstablished+1
// upward, committing timing units while the decision is not "undecided",
// stopping at the first stall. It returns the newly committed batches.
func (p *Poset) AttemptTimingDecision() []Batch {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batches []Batch
	for l := p.levelTimingEstablished + 1; ; l++ {
		uc, ok := timing.Decide(l, p.cfg.N, p.cfg.VotingLevel, p.cfg.PiDeltaLevel, p.levelReached, p, p.primeUnitsByLevel[l], p, p.isPrime)
		if !ok {
			break
		}
		for len(p.timingUnits) <= l {
			p.timingUnits = append(p.timingUnits, nil)
		}
		p.timingUnits[l] = uc
		p.levelTimingEstablished = l
		p.met.incTimingCommitted()
		p.evictMemo(l)

		var prev *unit.Unit
		if l > 0 {
			prev = p.timingUnits[l-1]
		}
		round := linearizer.TimingRound(uc, prev, p)
		ordered := linearizer.BreakTies(round)
		batches = append(batches, Batch{Level: l, Units: ordered})
		p.log.Info("poset: timing unit committed", "level", l, "unit", uc.ShortName(), "batch_size", len(ordered))
	}
	return batches
}

// evictMemo drops memoization rows belonging to candidates at level l,
// per spec.md §3: memoization rows are freed once that level's timing
// unit is committed. The vote/timing algorithms here are computed fresh
// from the (small, already-pruned) DAG each call rather than through a
// standing cache, so there is nothing to evict yet; this hook exists so
// a future caching layer has a single, correct place to hang eviction.
func (p *Poset) evictMemo(int) {}

// TimingRound returns the deterministic linear order for round k. k must
// already have been committed by AttemptTimingDecision.
func (p *Poset) TimingRound(k int) ([]*unit.Unit, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if k < 0 || k >= len(p.timingUnits) || p.timingUnits[k] == nil {
		return nil, ErrRoundNotReady
	}
	var prev *unit.Unit
	if k > 0 {
		prev = p.timingUnits[k-1]
	}
	round := linearizer.TimingRound(p.timingUnits[k], prev, p)
	return linearizer.BreakTies(round), nil
}

// LevelTimingEstablished returns the highest committed timing level, or
// -1 if none has been committed yet.
func (p *Poset) LevelTimingEstablished() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.levelTimingEstablished
}

// LevelReached returns the highest level assigned to any installed unit.
func (p *Poset) LevelReached() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.levelReached
}

// Unit looks up an installed unit by hash.
func (p *Poset) Unit(h ids.ID) (*unit.Unit, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.units[h]
	return u, ok
}
