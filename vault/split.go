// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

// splitRows chunks rows into contiguous sub-batches of at most size items;
// the last sub-batch holds the remainder. Concatenating the sub-batches in
// order reproduces rows exactly — nothing dropped, nothing duplicated.
func splitRows(rows []Row, size int) [][]Row {
	var batches [][]Row
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[i:end])
	}
	return batches
}

// splitStrings chunks values the same way splitRows chunks rows.
func splitStrings(values []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		batches = append(batches, values[i:end])
	}
	return batches
}
