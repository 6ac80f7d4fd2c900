// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

// rowRef locates one row of the inbound batch: its position and its
// caller-supplied key.
type rowRef struct {
	originalIndex int
	rowKey        interface{}
}

// dedupGroups indexes a batch's well-formed rows by value. order holds the
// distinct values in first-seen order; refs maps each value to every row
// carrying it. First-seen order decides which sub-batch a value lands in,
// nothing more — assembly is keyed by row index.
type dedupGroups struct {
	order []string
	refs  map[string][]rowRef
}

// dedupRows groups rows by value for the detokenize path. The tokenize
// path never calls this: duplicate plaintext is tokenized independently,
// which is part of the observed vault contract.
func dedupRows(rows []Row) *dedupGroups {
	g := &dedupGroups{refs: make(map[string][]rowRef, len(rows))}
	for _, row := range rows {
		refs := g.refs[row.Value]
		if len(refs) == 0 {
			g.order = append(g.order, row.Value)
		}
		g.refs[row.Value] = append(refs, rowRef{
			originalIndex: row.OriginalIndex,
			rowKey:        row.RowKey,
		})
	}
	return g
}

// unique returns the number of distinct values in the batch.
func (g *dedupGroups) unique() int {
	return len(g.order)
}

// dedupPct returns the percent reduction dedup achieved over totalRows.
func (g *dedupGroups) dedupPct(totalRows int) float64 {
	if totalRows == 0 {
		return 0
	}
	return 100.0 * (1.0 - float64(len(g.order))/float64(totalRows))
}
