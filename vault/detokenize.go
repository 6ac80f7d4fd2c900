// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import "context"

// Detokenize resolves each row's token back to its plaintext value.
// Duplicate tokens within the batch are looked up once and the value is
// fanned back out to every row carrying that token. The returned rows are
// in input order, one per input row; rows covered by a failed sub-batch (or
// malformed rows) carry an "ERROR: " placeholder instead of a value.
func (c *Client) Detokenize(ctx context.Context, raw [][]interface{}) ([][]interface{}, *BatchMetrics, error) {
	span := c.tracer.StartSpan("Client.Detokenize")
	defer span.Finish()

	result := make([][]interface{}, len(raw))
	metrics := &BatchMetrics{TotalRows: len(raw)}

	rows := normalizeRows(raw, result)

	groups := dedupRows(rows)
	metrics.UniqueValues = groups.unique()
	metrics.DedupPct = groups.dedupPct(len(raw))

	batches := splitStrings(groups.order, c.cfg.SubBatchSize)
	metrics.Calls = len(batches)

	outcomes, wall := c.dispatch(ctx, len(batches), func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		return c.detokenizeBatch(ctx, batches[i], onRetry)
	})

	metrics.WallMillis = wall.Milliseconds()
	metrics.observeCalls(outcomes)

	// Fan each token's result back out to every row that carried it.
	for i, batch := range batches {
		out := &outcomes[i]
		for j, token := range batch {
			var value string
			if out.state == stateSucceeded {
				value = out.results[j]
			} else {
				value = errorPlaceholder(out.err)
			}
			for _, ref := range groups.refs[token] {
				result[ref.originalIndex] = []interface{}{ref.rowKey, value}
			}
		}
	}

	c.Stats.Count(MetricRowsProcessed, int64(len(raw)), 1.0)
	return result, metrics, nil
}
