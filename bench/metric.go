// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bench turns raw benchmark telemetry into throughput reports:
// it parses METRIC lines out of handler logs, aggregates them into
// per-run summaries, and fetches them from CloudWatch Logs or the
// DynamoDB metric table.
package bench

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vaultbench/vaultbench/dynamo"
)

// metricMarker starts the payload of a telemetry line. Anything before it
// (log timestamps, level prefixes, stream decoration) is tolerated.
const metricMarker = "METRIC "

// Invocation is one parsed METRIC telemetry line.
type Invocation struct {
	Timestamp time.Time // from the log line prefix; zero when absent

	QueryID       string
	BatchID       string
	Config        string
	Operation     string
	Mode          string
	BatchSize     int
	DurationMs    int64
	UniqueValues  int
	DedupPct      float64
	VaultCalls    int
	VaultWallMs   int64
	CallMinMs     int64
	CallAvgMs     int64
	CallMaxMs     int64
	OverheadMs    int64
	Errors        int
	InvocationNum int64
	InstanceID    string
}

// ParseMetricLine extracts an Invocation from one log line. The second
// return is false for lines that carry no METRIC payload. Unknown keys
// are ignored and unparsable values read as zero, so mock-mode lines and
// future fields both pass through cleanly.
func ParseMetricLine(line string) (*Invocation, bool) {
	idx := strings.Index(line, metricMarker)
	if idx < 0 {
		return nil, false
	}

	inv := &Invocation{}
	// The handler's logger stamps lines with an RFC3339 timestamp; pick
	// it up when present so summaries can compute a wall-clock span.
	if fields := strings.Fields(line[:idx]); len(fields) > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, fields[0]); err == nil {
			inv.Timestamp = ts
		}
	}

	for _, pair := range strings.Fields(line[idx+len(metricMarker):]) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "query_id":
			inv.QueryID = kv[1]
		case "batch_id":
			inv.BatchID = kv[1]
		case "config":
			inv.Config = kv[1]
		case "operation":
			inv.Operation = kv[1]
		case "mode":
			inv.Mode = kv[1]
		case "batch_size":
			inv.BatchSize = parseInt(kv[1])
		case "duration_ms":
			inv.DurationMs = parseInt64(kv[1])
		case "unique_values":
			inv.UniqueValues = parseInt(kv[1])
		case "dedup_pct":
			inv.DedupPct = parseFloat(kv[1])
		case "vault_calls":
			inv.VaultCalls = parseInt(kv[1])
		case "vault_wall_ms":
			inv.VaultWallMs = parseInt64(kv[1])
		case "call_min_ms":
			inv.CallMinMs = parseInt64(kv[1])
		case "call_avg_ms":
			inv.CallAvgMs = parseInt64(kv[1])
		case "call_max_ms":
			inv.CallMaxMs = parseInt64(kv[1])
		case "overhead_ms":
			inv.OverheadMs = parseInt64(kv[1])
		case "errors":
			inv.Errors = parseInt(kv[1])
		case "invocation":
			inv.InvocationNum = parseInt64(kv[1])
		case "instance":
			inv.InstanceID = kv[1]
		}
	}
	return inv, true
}

// ParseMetricLines reads a log stream and returns every METRIC line in
// it, in input order. Non-metric lines are skipped, not errors.
func ParseMetricLines(r io.Reader) ([]Invocation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var invs []Invocation
	for scanner.Scan() {
		if inv, ok := ParseMetricLine(scanner.Text()); ok {
			invs = append(invs, *inv)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning log lines")
	}
	return invs, nil
}

// FromRecords converts stored metric records into the parser's invocation
// form so both telemetry paths feed the same summaries.
func FromRecords(recs []dynamo.MetricRecord) []Invocation {
	invs := make([]Invocation, len(recs))
	for i, rec := range recs {
		invs[i] = Invocation{
			Timestamp:     time.Unix(0, rec.ReceiveTimestampNs),
			QueryID:       rec.QueryID,
			BatchID:       rec.BatchID,
			Config:        rec.BenchmarkConfig,
			Operation:     rec.Operation,
			Mode:          rec.Mode,
			BatchSize:     rec.BatchSize,
			DurationMs:    rec.DurationMs,
			UniqueValues:  rec.UniqueValues,
			DedupPct:      rec.DedupPct,
			VaultCalls:    rec.VaultCalls,
			VaultWallMs:   rec.VaultWallMs,
			CallMinMs:     rec.CallMinMs,
			CallAvgMs:     rec.CallAvgMs,
			CallMaxMs:     rec.CallMaxMs,
			OverheadMs:    rec.OverheadMs,
			Errors:        rec.Errors,
			InvocationNum: rec.InvocationNum,
			InstanceID:    rec.InstanceID,
		}
	}
	return invs
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
