// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import "context"

// Tokenize converts each row's value into a vault-assigned token. Rows are
// dispatched as-is — duplicate values are tokenized independently, so two
// rows sharing a value may receive different tokens. The returned rows are
// in input order, one per input row; rows covered by a failed sub-batch (or
// malformed rows) carry an "ERROR: " placeholder instead of a token.
func (c *Client) Tokenize(ctx context.Context, raw [][]interface{}) ([][]interface{}, *BatchMetrics, error) {
	span := c.tracer.StartSpan("Client.Tokenize")
	defer span.Finish()

	if c.cfg.TableName == "" {
		return nil, nil, ErrTableNameRequired
	}
	if c.cfg.ColumnName == "" {
		return nil, nil, ErrColumnNameRequired
	}

	result := make([][]interface{}, len(raw))
	metrics := &BatchMetrics{TotalRows: len(raw)}

	rows := normalizeRows(raw, result)

	// No dedup on this path: every well-formed row is its own work item.
	metrics.UniqueValues = len(rows)
	metrics.DedupPct = 0

	batches := splitRows(rows, c.cfg.SubBatchSize)
	metrics.Calls = len(batches)

	outcomes, wall := c.dispatch(ctx, len(batches), func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		return c.tokenizeBatch(ctx, batches[i], onRetry)
	})

	metrics.WallMillis = wall.Milliseconds()
	metrics.observeCalls(outcomes)

	// Each sub-batch result maps 1:1 back onto its originating rows.
	for i, batch := range batches {
		out := &outcomes[i]
		for j, row := range batch {
			if out.state == stateSucceeded {
				result[row.OriginalIndex] = []interface{}{row.RowKey, out.results[j]}
			} else {
				result[row.OriginalIndex] = []interface{}{row.RowKey, errorPlaceholder(out.err)}
			}
		}
	}

	c.Stats.Count(MetricRowsProcessed, int64(len(raw)), 1.0)
	return result, metrics, nil
}
