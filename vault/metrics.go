// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

const (
	// MetricVaultCallDurationSeconds records the latency of one sub-batch
	// call against the vault, including any retry wait.
	MetricVaultCallDurationSeconds = "vault_call_duration_seconds"

	// MetricVaultCalls counts sub-batch calls dispatched to the vault.
	MetricVaultCalls = "vault_calls"

	// MetricVaultCallErrors counts sub-batch calls that ended in terminal
	// failure, after any retry.
	MetricVaultCallErrors = "vault_call_errors"

	// MetricVaultCallRetries counts single retries taken after a
	// transient vault failure.
	MetricVaultCallRetries = "vault_call_retries"

	// MetricRowsProcessed counts rows carried through Tokenize and
	// Detokenize, malformed rows included.
	MetricRowsProcessed = "rows_processed"
)

// BatchMetrics summarizes one batch's trip through the pipeline: how much
// dedup saved, how many vault calls it took, and how the call latencies
// spread. It is computed once, after the dispatch barrier, and never
// alters row results.
type BatchMetrics struct {
	TotalRows     int     // rows received, well-formed or not
	UniqueValues  int     // distinct values dispatched (= well-formed rows for tokenize)
	DedupPct      float64 // percent reduction from dedup
	Calls         int     // vault sub-batch calls
	WallMillis    int64   // wall-clock span of the concurrent dispatch
	CallMinMillis int64   // fastest individual call
	CallAvgMillis int64   // average individual call
	CallMaxMillis int64   // slowest individual call
	Errors        int     // failed sub-batches
}

// observeCalls folds the terminal call outcomes into the metrics.
func (m *BatchMetrics) observeCalls(outcomes []callOutcome) {
	if len(outcomes) == 0 {
		return
	}
	var sum int64
	lo, hi := outcomes[0].latencyMs, outcomes[0].latencyMs
	for i := range outcomes {
		l := outcomes[i].latencyMs
		sum += l
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
		if outcomes[i].state == stateFailed {
			m.Errors++
		}
	}
	m.CallMinMillis = lo
	m.CallAvgMillis = sum / int64(len(outcomes))
	m.CallMaxMillis = hi
}
