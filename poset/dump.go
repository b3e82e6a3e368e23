// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/luxfi/ids"
	rlog "github.com/luxfi/log"

	"github.com/luxfi/poset/floor"
	"github.com/luxfi/poset/level"
	"github.com/luxfi/poset/posetcfg"
	"github.com/luxfi/poset/tcoin"
	"github.com/luxfi/poset/unit"

	"github.com/prometheus/client_golang/prometheus"
)

const dumpFormatHeader = "format dump-nofork-level-timing"

// Dump writes the text persistence/debugging format of spec.md §6: one
// record per installed unit, in insertion order.
func (p *Poset) Dump(w io.Writer) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	bw := bufio.NewWriter(w)

	timing := make(map[*unit.Unit]bool, len(p.timingUnits))
	for _, u := range p.timingUnits {
		if u != nil {
			timing[u] = true
		}
	}

	fmt.Fprintln(bw, dumpFormatHeader)
	fmt.Fprintf(bw, "process_id %d\n", p.cfg.ProcessID)
	fmt.Fprintf(bw, "n_processes %d\n", p.cfg.N)
	fmt.Fprintf(bw, "n_units %d\n", len(p.insertOrder))

	for _, u := range p.insertOrder {
		fmt.Fprintf(bw, "%s %d\n", u.ShortName(), u.CreatorID)
		fmt.Fprint(bw, "parents")
		for _, parent := range u.Parents {
			fmt.Fprintf(bw, " %s", parent.ShortName())
		}
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "level %d\n", u.Level)
		t := 0
		if timing[u] {
			t = 1
		}
		fmt.Fprintf(bw, "timing %d\n", t)
	}

	return bw.Flush()
}

// Load parses a dump produced by Dump back into a fresh Poset. Payload,
// coin material, and floor tables are not part of the dump format (§6
// lists only identity, parentage, level and timing); Load reconstructs
// just enough structure — creator, parents, level, primality, floors
// recomputed from parents, and the timing frontier — to satisfy the
// round-trip law of spec.md §8: levels
// and timing flags come back out exactly as dumped. A loaded Poset can
// be queried (Below, TimingRound, LevelReached, ...) but should not be
// fed new units expecting the original coin/floor/compliance state to
// reappear — that state was never part of the dump.
func Load(r io.Reader, logger rlog.Logger, registerer prometheus.Registerer) (*Poset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, ErrDumpMalformed
	}
	if strings.TrimSpace(sc.Text()) != dumpFormatHeader {
		return nil, ErrDumpMalformed
	}

	processID, err := readKeyInt(sc, "process_id")
	if err != nil {
		return nil, err
	}
	n, err := readKeyInt(sc, "n_processes")
	if err != nil {
		return nil, err
	}
	nUnits, err := readKeyInt(sc, "n_units")
	if err != nil {
		return nil, err
	}

	cfg := posetcfg.DefaultConfig(n)
	cfg.ProcessID = processID
	cfg.UseTCoin = false

	if logger == nil {
		logger = rlog.NewNoOpLogger()
	}

	p := &Poset{
		cfg:                    cfg,
		log:                    logger,
		met:                    newMetrics(registerer),
		units:                  make(map[ids.ID]*unit.Unit),
		dealingUnits:           make([][]*unit.Unit, n),
		maxUnitsPerProcess:     make([][]*unit.Unit, n),
		forkingHeight:          makeUnset(n),
		primeUnitsByLevel:      make(map[int]map[int][]*unit.Unit),
		thresholdCoins:         make(map[ids.ID]*tcoin.ThresholdCoin),
		levelTimingEstablished: -1,
		levelReached:           0,
	}

	byShortName := make(map[string]*unit.Unit, nUnits)

	for i := 0; i < nUnits; i++ {
		shortName, creatorID, err := readIdentityLine(sc)
		if err != nil {
			return nil, err
		}
		parentNames, err := readParentsLine(sc)
		if err != nil {
			return nil, err
		}
		lvl, err := readKeyInt(sc, "level")
		if err != nil {
			return nil, err
		}
		timingFlag, err := readKeyInt(sc, "timing")
		if err != nil {
			return nil, err
		}

		var parents []*unit.Unit
		for _, pn := range parentNames {
			parent, ok := byShortName[pn]
			if !ok {
				return nil, ErrDumpMalformed
			}
			parents = append(parents, parent)
		}

		var u *unit.Unit
		if len(parents) == 0 {
			u = unit.NewDealingUnit(creatorID, n, nil, nil)
		} else {
			u = unit.NewUnit(creatorID, parents, nil)
		}
		u.Level = lvl
		if u.IsDealing() {
			u.Floor[creatorID] = []*unit.Unit{u}
		} else {
			floor.Compute(u, n, p.forkingHeight)
		}

		byShortName[shortName] = u
		h := u.Hash()

		p.units[h] = u
		p.insertOrder = append(p.insertOrder, u)

		if u.IsDealing() {
			p.dealingUnits[creatorID] = append(p.dealingUnits[creatorID], u)
		}
		p.maxUnitsPerProcess[creatorID] = []*unit.Unit{u}

		if level.IsPrime(u) {
			if p.primeUnitsByLevel[lvl] == nil {
				p.primeUnitsByLevel[lvl] = make(map[int][]*unit.Unit)
			}
			p.primeUnitsByLevel[lvl][creatorID] = append(p.primeUnitsByLevel[lvl][creatorID], u)
		}

		if timingFlag == 1 {
			for len(p.timingUnits) <= lvl {
				p.timingUnits = append(p.timingUnits, nil)
			}
			p.timingUnits[lvl] = u
			if lvl > p.levelTimingEstablished {
				p.levelTimingEstablished = lvl
			}
		}
		if lvl > p.levelReached {
			p.levelReached = lvl
		}
	}

	return p, nil
}

func readKeyInt(sc *bufio.Scanner, key string) (int, error) {
	if !sc.Scan() {
		return 0, ErrDumpMalformed
	}
	fields := strings.Fields(sc.Text())
	if len(fields) != 2 || fields[0] != key {
		return 0, ErrDumpMalformed
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, ErrDumpMalformed
	}
	return v, nil
}

func readIdentityLine(sc *bufio.Scanner) (shortName string, creatorID int, err error) {
	if !sc.Scan() {
		return "", 0, ErrDumpMalformed
	}
	fields := strings.Fields(sc.Text())
	if len(fields) != 2 {
		return "", 0, ErrDumpMalformed
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, ErrDumpMalformed
	}
	return fields[0], id, nil
}

func readParentsLine(sc *bufio.Scanner) ([]string, error) {
	if !sc.Scan() {
		return nil, ErrDumpMalformed
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 || fields[0] != "parents" {
		return nil, ErrDumpMalformed
	}
	return fields[1:], nil
}
