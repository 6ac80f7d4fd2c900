// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package bench

import (
	"math"
	"sort"
	"time"
)

// durStats accumulates a millisecond duration distribution.
type durStats struct {
	min     int64
	max     int64
	total   int64
	num     int64
	samples []int64
}

func newDurStats() *durStats {
	return &durStats{
		min: 1<<63 - 1,
	}
}

func (s *durStats) add(ms int64) {
	s.num++
	s.total += ms
	if ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
	s.samples = append(s.samples, ms)
}

func (s *durStats) minOrZero() int64 {
	if s.num == 0 {
		return 0
	}
	return s.min
}

func (s *durStats) avg() int64 {
	if s.num == 0 {
		return 0
	}
	return s.total / s.num
}

// percentile returns the nearest-rank p-th percentile of the samples.
func (s *durStats) percentile(p float64) int64 {
	if len(s.samples) == 0 {
		return 0
	}
	sorted := append([]int64(nil), s.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Summary aggregates a set of invocations into the numbers a benchmark
// run is judged by.
type Summary struct {
	Invocations int
	TotalRows   int64
	VaultCalls  int
	Errors      int

	// Start and End bound the observed invocation timestamps.
	Start time.Time
	End   time.Time

	// RowsPerSec is total rows over the wall-clock span of the run. A
	// single-invocation run falls back to its processing duration.
	RowsPerSec float64

	// DedupPct is recomputed from row and unique-value totals across
	// vault-mode invocations rather than averaged per line.
	DedupPct float64

	// Per-invocation duration distribution.
	DurMinMs int64
	DurAvgMs int64
	DurMaxMs int64
	DurP50Ms int64
	DurP95Ms int64
	DurP99Ms int64

	// Individual vault call latency across the run.
	CallMinMs int64
	CallAvgMs int64
	CallMaxMs int64
}

// Summarize aggregates invocations into one Summary. Order does not
// matter. An empty input yields a zero Summary.
func Summarize(invs []Invocation) *Summary {
	s := &Summary{Invocations: len(invs)}
	if len(invs) == 0 {
		return s
	}

	durs := newDurStats()
	var vaultRows, uniqueValues int64
	var callMin, callMax, callAvgTotal, callAvgN int64
	callMin = 1<<63 - 1

	for _, inv := range invs {
		s.TotalRows += int64(inv.BatchSize)
		s.VaultCalls += inv.VaultCalls
		s.Errors += inv.Errors
		durs.add(inv.DurationMs)

		if !inv.Timestamp.IsZero() {
			if s.Start.IsZero() || inv.Timestamp.Before(s.Start) {
				s.Start = inv.Timestamp
			}
			if inv.Timestamp.After(s.End) {
				s.End = inv.Timestamp
			}
		}

		// Call latency fields only mean something when the invocation
		// actually made vault calls.
		if inv.VaultCalls > 0 {
			vaultRows += int64(inv.BatchSize)
			uniqueValues += int64(inv.UniqueValues)
			if inv.CallMinMs < callMin {
				callMin = inv.CallMinMs
			}
			if inv.CallMaxMs > callMax {
				callMax = inv.CallMaxMs
			}
			callAvgTotal += inv.CallAvgMs * int64(inv.VaultCalls)
			callAvgN += int64(inv.VaultCalls)
		}
	}

	s.DurMinMs = durs.minOrZero()
	s.DurAvgMs = durs.avg()
	s.DurMaxMs = durs.max
	s.DurP50Ms = durs.percentile(50)
	s.DurP95Ms = durs.percentile(95)
	s.DurP99Ms = durs.percentile(99)

	if callAvgN > 0 {
		s.CallMinMs = callMin
		s.CallMaxMs = callMax
		s.CallAvgMs = callAvgTotal / callAvgN
	}
	if vaultRows > 0 {
		s.DedupPct = 100.0 * (1.0 - float64(uniqueValues)/float64(vaultRows))
	}

	span := s.End.Sub(s.Start)
	if span <= 0 {
		// One invocation (or clustered timestamps): its own processing
		// time is the span.
		span = time.Duration(durs.max) * time.Millisecond
	}
	if span > 0 {
		s.RowsPerSec = float64(s.TotalRows) / span.Seconds()
	}
	return s
}

// GroupByConfig summarizes invocations per benchmark config tag.
func GroupByConfig(invs []Invocation) map[string]*Summary {
	return groupBy(invs, func(inv *Invocation) string { return inv.Config })
}

// GroupByOperation summarizes invocations per operation.
func GroupByOperation(invs []Invocation) map[string]*Summary {
	return groupBy(invs, func(inv *Invocation) string { return inv.Operation })
}

func groupBy(invs []Invocation, key func(*Invocation) string) map[string]*Summary {
	groups := make(map[string][]Invocation)
	for _, inv := range invs {
		k := key(&inv)
		groups[k] = append(groups[k], inv)
	}
	out := make(map[string]*Summary, len(groups))
	for k, group := range groups {
		out[k] = Summarize(group)
	}
	return out
}
