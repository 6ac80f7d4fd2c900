// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package bench_test

import (
	"testing"
	"time"

	"github.com/vaultbench/vaultbench/bench"
)

func vaultInv(ts time.Time, config string, durMs int64) bench.Invocation {
	return bench.Invocation{
		Timestamp:    ts,
		QueryID:      "q",
		Config:       config,
		Operation:    "detokenize",
		Mode:         "vault",
		BatchSize:    1000,
		DurationMs:   durMs,
		UniqueValues: 600,
		DedupPct:     40.0,
		VaultCalls:   10,
		CallAvgMs:    60,
	}
}

func TestSummarize(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)

	a := vaultInv(ts, "c", 100)
	a.CallMinMs, a.CallMaxMs = 40, 100
	b := vaultInv(ts.Add(time.Second), "c", 200)
	b.CallMinMs, b.CallMaxMs = 35, 90
	b.Errors = 1
	c := vaultInv(ts.Add(2*time.Second), "c", 300)
	c.CallMinMs, c.CallMaxMs = 50, 120

	s := bench.Summarize([]bench.Invocation{c, a, b}) // order must not matter

	if s.Invocations != 3 || s.TotalRows != 3000 || s.VaultCalls != 30 || s.Errors != 1 {
		t.Fatalf("totals mismatch: %+v", s)
	}
	if !s.Start.Equal(ts) || !s.End.Equal(ts.Add(2*time.Second)) {
		t.Fatalf("span mismatch: start=%v end=%v", s.Start, s.End)
	}
	// 3000 rows over a 2s wall-clock span.
	if s.RowsPerSec < 1499.9 || s.RowsPerSec > 1500.1 {
		t.Fatalf("rows/sec mismatch: %v", s.RowsPerSec)
	}
	// Recomputed from totals: 1800 unique of 3000 rows.
	if s.DedupPct < 39.9 || s.DedupPct > 40.1 {
		t.Fatalf("dedup pct mismatch: %v", s.DedupPct)
	}
	if s.DurMinMs != 100 || s.DurAvgMs != 200 || s.DurMaxMs != 300 {
		t.Fatalf("duration stats mismatch: %+v", s)
	}
	if s.DurP50Ms != 200 || s.DurP95Ms != 300 || s.DurP99Ms != 300 {
		t.Fatalf("percentiles mismatch: %+v", s)
	}
	if s.CallMinMs != 35 || s.CallAvgMs != 60 || s.CallMaxMs != 120 {
		t.Fatalf("call stats mismatch: %+v", s)
	}
}

func TestSummarizeSingleInvocation(t *testing.T) {
	inv := vaultInv(time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC), "c", 500)
	s := bench.Summarize([]bench.Invocation{inv})

	// With no wall-clock span the invocation's own processing time
	// stands in: 1000 rows in 500ms.
	if s.RowsPerSec < 1999.9 || s.RowsPerSec > 2000.1 {
		t.Fatalf("rows/sec fallback mismatch: %v", s.RowsPerSec)
	}
	if s.DurMinMs != 500 || s.DurP50Ms != 500 || s.DurP99Ms != 500 {
		t.Fatalf("single-sample stats mismatch: %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := bench.Summarize(nil)
	if s.Invocations != 0 || s.TotalRows != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if s.RowsPerSec != 0 || s.DedupPct != 0 {
		t.Fatalf("expected zero rates, got %+v", s)
	}
	if s.DurMinMs != 0 || s.DurAvgMs != 0 || s.DurP95Ms != 0 {
		t.Fatalf("expected zero duration stats, got %+v", s)
	}
}

func TestSummarizeMockInvocations(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	invs := []bench.Invocation{
		{Timestamp: ts, Mode: "mock", BatchSize: 100, DurationMs: 10},
		{Timestamp: ts.Add(time.Second), Mode: "mock", BatchSize: 100, DurationMs: 20},
	}
	s := bench.Summarize(invs)
	if s.TotalRows != 200 || s.VaultCalls != 0 {
		t.Fatalf("totals mismatch: %+v", s)
	}
	// No vault calls anywhere: call latency and dedup stay zero.
	if s.CallMinMs != 0 || s.CallAvgMs != 0 || s.CallMaxMs != 0 || s.DedupPct != 0 {
		t.Fatalf("expected zero call stats, got %+v", s)
	}
}

func TestGroupByConfig(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	invs := []bench.Invocation{
		vaultInv(ts, "batch1000_conc10", 100),
		vaultInv(ts.Add(time.Second), "batch1000_conc10", 200),
		vaultInv(ts.Add(2*time.Second), "batch2000_conc20", 300),
	}
	groups := bench.GroupByConfig(invs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if g := groups["batch1000_conc10"]; g == nil || g.Invocations != 2 {
		t.Fatalf("group batch1000_conc10 mismatch: %+v", g)
	}
	if g := groups["batch2000_conc20"]; g == nil || g.Invocations != 1 {
		t.Fatalf("group batch2000_conc20 mismatch: %+v", g)
	}
}

func TestGroupByOperation(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	det := vaultInv(ts, "c", 100)
	tok := vaultInv(ts.Add(time.Second), "c", 200)
	tok.Operation = "tokenize"

	groups := bench.GroupByOperation([]bench.Invocation{det, tok, det})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups["detokenize"].Invocations != 2 || groups["tokenize"].Invocations != 1 {
		t.Fatalf("group counts mismatch: %+v", groups)
	}
}
