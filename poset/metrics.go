// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poset

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the teacher's protocol/nova/metrics.go pattern: a
// plain struct of prometheus collectors, constructed once and nil-safe
// so the core has no hard dependency on a registerer being supplied.
type metrics struct {
	unitsInstalled      prometheus.Counter
	complianceRejected  prometheus.Counter
	forksObserved       prometheus.Counter
	levelReached        prometheus.Gauge
	timingCommitted     prometheus.Counter
	coinCombineFallback prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	if registerer == nil {
		return nil
	}
	m := &metrics{
		unitsInstalled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poset_units_installed_total",
			Help: "Number of units installed into the poset.",
		}),
		complianceRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poset_compliance_rejected_total",
			Help: "Number of candidate units rejected by compliance validation.",
		}),
		forksObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poset_forks_observed_total",
			Help: "Number of processes observed to have forked.",
		}),
		levelReached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poset_level_reached",
			Help: "Highest level assigned to any installed unit.",
		}),
		timingCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poset_timing_units_committed_total",
			Help: "Number of timing units committed.",
		}),
		coinCombineFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poset_coin_combine_fallback_total",
			Help: "Number of times threshold-coin combine fell back to simple_coin.",
		}),
	}
	registerer.MustRegister(
		m.unitsInstalled,
		m.complianceRejected,
		m.forksObserved,
		m.levelReached,
		m.timingCommitted,
		m.coinCombineFallback,
	)
	return m
}

func (m *metrics) incUnitsInstalled() {
	if m != nil {
		m.unitsInstalled.Inc()
	}
}

func (m *metrics) incComplianceRejected() {
	if m != nil {
		m.complianceRejected.Inc()
	}
}

func (m *metrics) incForksObserved() {
	if m != nil {
		m.forksObserved.Inc()
	}
}

func (m *metrics) setLevelReached(l int) {
	if m != nil {
		m.levelReached.Set(float64(l))
	}
}

func (m *metrics) incTimingCommitted() {
	if m != nil {
		m.timingCommitted.Inc()
	}
}

func (m *metrics) incCoinCombineFallback() {
	if m != nil {
		m.coinCombineFallback.Inc()
	}
}
