// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package extfunc adapts warehouse external-function invocations to the
// vault client. It parses the warehouse JSON envelope and sf-* metadata
// headers, routes each batch to a per-entity vault client (or a mock echo
// when no vault is configured), and emits one telemetry record per
// invocation.
package extfunc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vaultbench/vaultbench/logger"
	"github.com/vaultbench/vaultbench/vault"
)

// Metadata headers set by the warehouse on each external-function call.
// Custom headers arrive with the warehouse's "sf-custom-" prefix.
const (
	HeaderQueryID         = "sf-external-function-current-query-id"
	HeaderBatchID         = "sf-external-function-query-batch-id"
	HeaderBenchmarkConfig = "sf-benchmark-config"
	HeaderOperation       = "sf-custom-x-operation"
	HeaderEntity          = "sf-custom-x-entity"
)

// Operations the handler understands.
const (
	OpTokenize   = "tokenize"
	OpDetokenize = "detokenize"
)

// DefaultEntity is the entity assumed when a request does not name one.
const DefaultEntity = "NAME"

// Mock-mode result markers.
const (
	MockPrefix       = "DETOK_"
	MockMissingValue = "DETOK_ERROR_MISSING_VALUE"
)

var (
	// ErrUnknownOperation is returned for an operation header naming
	// neither tokenize nor detokenize.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnknownEntity is returned when a request names an entity the
	// handler has no vault client for.
	ErrUnknownEntity = errors.New("unknown entity")
)

// payload is the warehouse JSON envelope, shared by requests and
// responses: a list of [rowKey, value] pairs.
type payload struct {
	Data [][]interface{} `json:"data"`
}

// Invocation is one parsed external-function call: the row batch plus the
// warehouse metadata that identifies it.
type Invocation struct {
	QueryID   string
	BatchID   string
	Config    string
	Operation string
	Entity    string
	Rows      [][]interface{}
}

// ParseInvocation decodes a request body and its headers into an
// Invocation. Header lookup is case-insensitive because the warehouse and
// the gateway in front of it do not agree on casing. Missing metadata
// headers fall back to "unknown" so telemetry lines always parse.
func ParseInvocation(body []byte, headers map[string]string) (*Invocation, error) {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	inv := &Invocation{
		QueryID:   valueOr(lower[HeaderQueryID], "unknown"),
		BatchID:   valueOr(lower[HeaderBatchID], "unknown"),
		Config:    valueOr(lower[HeaderBenchmarkConfig], "unknown"),
		Operation: strings.ToLower(valueOr(lower[HeaderOperation], OpDetokenize)),
		Entity:    strings.ToUpper(valueOr(lower[HeaderEntity], DefaultEntity)),
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "unmarshaling request body")
	}
	inv.Rows = p.Data
	return inv, nil
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// MetricSink receives one Report per invocation. Sink failures are logged
// and never affect the response.
type MetricSink interface {
	Record(ctx context.Context, r *Report) error
}

// Handler services external-function invocations. One Handler lives for
// the life of the process and is safe for concurrent use.
type Handler struct {
	// Log receives operational messages and the per-invocation METRIC
	// line.
	Log logger.Logger

	// Sink, when set, receives a Report per invocation.
	Sink MetricSink

	// Delay is the artificial latency applied in mock mode.
	Delay time.Duration

	clients     map[string]*vault.Client
	instanceID  string
	invocations int64
}

// NewHandler builds a Handler serving the given per-entity vault clients.
// A nil or empty map puts the handler in mock mode.
func NewHandler(clients map[string]*vault.Client) *Handler {
	return &Handler{
		Log:        logger.NopLogger,
		clients:    clients,
		instanceID: uuid.NewString(),
	}
}

// InstanceID identifies this handler process in telemetry. Each process
// gets a fresh one, which is how benchmark reports count warm instances.
func (h *Handler) InstanceID() string {
	return h.instanceID
}

// Handle runs one invocation: the whole batch through the vault pipeline,
// or the mock echo when no vault is configured. The returned rows are
// parallel to inv.Rows. An error means the batch produced no response at
// all; per-row failures come back inside the rows instead.
func (h *Handler) Handle(ctx context.Context, inv *Invocation) ([][]interface{}, *Report, error) {
	start := time.Now()
	invNum := atomic.AddInt64(&h.invocations, 1)
	CounterInvocations.Inc()

	rep := &Report{
		QueryID:    inv.QueryID,
		BatchID:    inv.BatchID,
		Config:     inv.Config,
		Operation:  inv.Operation,
		BatchSize:  len(inv.Rows),
		ReceiveNs:  start.UnixNano(),
		Invocation: invNum,
		InstanceID: h.instanceID,
	}

	var out [][]interface{}
	if len(h.clients) == 0 {
		rep.Mode = ModeMock
		out = h.mockRows(inv.Rows)
	} else {
		rep.Mode = ModeVault
		client := h.clients[inv.Entity]
		if client == nil {
			return nil, nil, errors.Wrapf(ErrUnknownEntity, "entity %q", inv.Entity)
		}

		var m *vault.BatchMetrics
		var err error
		switch inv.Operation {
		case OpTokenize:
			out, m, err = client.Tokenize(ctx, inv.Rows)
		case OpDetokenize:
			out, m, err = client.Detokenize(ctx, inv.Rows)
		default:
			return nil, nil, errors.Wrapf(ErrUnknownOperation, "operation %q", inv.Operation)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s failed", inv.Operation)
		}
		rep.Vault = m
		CounterVaultCalls.Add(float64(m.Calls))
		CounterVaultCallErrors.Add(float64(m.Errors))
	}
	CounterRows.Add(float64(len(inv.Rows)))

	rep.DurationMs = time.Since(start).Milliseconds()
	if rep.Vault != nil {
		rep.OverheadMs = rep.DurationMs - rep.Vault.WallMillis
	}

	h.Log.Infof("%s", rep.MetricLine())

	if h.Sink != nil {
		// Synchronous, so the record lands before the runtime freezes
		// the process.
		if err := h.Sink.Record(context.Background(), rep); err != nil {
			h.Log.Warnf("recording invocation metrics: %v", err)
		}
	}
	return out, rep, nil
}

// mockRows echoes the batch back with a marker prefix, standing in for the
// vault when none is configured. Row shape rules match the real pipeline.
func (h *Handler) mockRows(rows [][]interface{}) [][]interface{} {
	if h.Delay > 0 {
		time.Sleep(h.Delay)
	}
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			out[i] = []interface{}{i, MockMissingValue}
			continue
		}
		out[i] = []interface{}{row[0], MockPrefix + fmt.Sprintf("%v", row[1])}
	}
	return out
}
