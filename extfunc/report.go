// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package extfunc

import (
	"fmt"

	"github.com/vaultbench/vaultbench/vault"
)

// Handler modes reported in telemetry.
const (
	ModeVault = "vault"
	ModeMock  = "mock"
)

// Report is the per-invocation measurement record. It becomes the METRIC
// log line and, when a sink is configured, one stored metric record.
type Report struct {
	QueryID    string
	BatchID    string
	Config     string
	Operation  string
	Mode       string
	BatchSize  int
	DurationMs int64
	ReceiveNs  int64
	Invocation int64
	InstanceID string

	// Vault carries the pipeline metrics; nil in mock mode.
	Vault *vault.BatchMetrics

	// OverheadMs is handler time not spent inside the vault pipeline.
	OverheadMs int64
}

// MetricLine renders the one-line telemetry record consumed by the bench
// package. Vault-mode lines carry the per-call latency fields; mock-mode
// lines stop after duration_ms.
func (r *Report) MetricLine() string {
	if r.Vault == nil {
		return fmt.Sprintf("METRIC query_id=%s batch_id=%s batch_size=%d operation=%s mode=%s duration_ms=%d "+
			"invocation=%d instance=%s config=%s",
			r.QueryID, r.BatchID, r.BatchSize, r.Operation, r.Mode, r.DurationMs,
			r.Invocation, r.InstanceID, r.Config)
	}
	return fmt.Sprintf("METRIC query_id=%s batch_id=%s batch_size=%d operation=%s mode=%s duration_ms=%d "+
		"unique_values=%d dedup_pct=%.1f vault_calls=%d vault_wall_ms=%d "+
		"call_min_ms=%d call_avg_ms=%d call_max_ms=%d overhead_ms=%d errors=%d "+
		"invocation=%d instance=%s config=%s",
		r.QueryID, r.BatchID, r.BatchSize, r.Operation, r.Mode, r.DurationMs,
		r.Vault.UniqueValues, r.Vault.DedupPct, r.Vault.Calls, r.Vault.WallMillis,
		r.Vault.CallMinMillis, r.Vault.CallAvgMillis, r.Vault.CallMaxMillis, r.OverheadMs, r.Vault.Errors,
		r.Invocation, r.InstanceID, r.Config)
}
