// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import "fmt"

// Row is one well-formed row extracted from an inbound batch.
type Row struct {
	// OriginalIndex is the row's position in the inbound batch. Results
	// are reassembled by this index, so completion order never affects
	// output order.
	OriginalIndex int

	// RowKey is caller-supplied and round-tripped unmodified.
	RowKey interface{}

	// Value is the plaintext to tokenize or the token to detokenize.
	Value string
}

// normalizeRows extracts (index, key, value) from each raw row. A row with
// fewer than two fields is finalized on the spot: its slot in result gets
// an error placeholder and it takes no further part in dedup, splitting, or
// dispatch. result must be the same length as raw.
func normalizeRows(raw [][]interface{}, result [][]interface{}) []Row {
	rows := make([]Row, 0, len(raw))
	for i, r := range raw {
		if len(r) < 2 {
			result[i] = []interface{}{i, "ERROR: missing value"}
			continue
		}
		rows = append(rows, Row{
			OriginalIndex: i,
			RowKey:        r[0],
			Value:         fmt.Sprintf("%v", r[1]),
		})
	}
	return rows
}

// errorPlaceholder renders err as the row-level error string the caller
// sees in place of a value.
func errorPlaceholder(err error) string {
	return fmt.Sprintf("ERROR: %v", err)
}
