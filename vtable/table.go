// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package vtable holds the tabular representation shared by every
// harmonization stage: a header of unique column names plus rows of
// string fields positioned by header index.
package vtable

import (
	"fmt"
	"strings"
)

// NA is the missing-value marker written into filled columns.
const NA = "NA"

// IsMissing reports whether v is one of the missing-value sentinels
// used by upstream summary statistics files.
func IsMissing(v string) bool {
	return v == NA || v == "NaN" || v == ""
}

// Table is a header plus rows. Stages that transform a Table take
// ownership of its rows; callers must not use a Table after passing
// it to such a stage.
type Table struct {
	Header []string
	Rows   [][]string
}

// New returns an empty table with a copy of the given header.
func New(header []string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// Idx returns the index of the named column.
func (t *Table) Idx(col string) (int, bool) {
	for i, h := range t.Header {
		if h == col {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether the named column is present.
func (t *Table) Has(col string) bool {
	_, ok := t.Idx(col)
	return ok
}

// Indexes returns the index of each named column, or an error
// listing every column that is absent.
func (t *Table) Indexes(cols ...string) ([]int, error) {
	idx := make([]int, len(cols))
	var missing []string
	for i, col := range cols {
		var ok bool
		idx[i], ok = t.Idx(col)
		if !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// AddColumn appends a column filled with the given value and returns
// its index. If the column already exists, its index is returned and
// existing values are left alone.
func (t *Table) AddColumn(col, fill string) int {
	if i, ok := t.Idx(col); ok {
		return i
	}
	t.Header = append(t.Header, col)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	return len(t.Header) - 1
}

// Rename changes the name of column from to to. Renaming a column to
// a name already used by a different column is an error, since header
// names must stay unique.
func (t *Table) Rename(from, to string) error {
	i, ok := t.Idx(from)
	if !ok {
		return fmt.Errorf("cannot rename %q: no such column", from)
	}
	if from == to {
		return nil
	}
	if t.Has(to) {
		return fmt.Errorf("cannot rename %q to %q: column %q already exists", from, to, to)
	}
	t.Header[i] = to
	return nil
}

// Col returns the values of the named column, in row order.
func (t *Table) Col(col string) ([]string, error) {
	i, ok := t.Idx(col)
	if !ok {
		return nil, fmt.Errorf("missing required column: %s", col)
	}
	vals := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		vals[r] = row[i]
	}
	return vals, nil
}

// Filter keeps the rows for which keep returns true, in order.
func (t *Table) Filter(keep func(row []string) bool) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
}

// Project returns a new table with exactly the given columns, in the
// given order. Columns t does not have are filled with fill. The rows
// of t are consumed.
func (t *Table) Project(cols []string, fill string) *Table {
	src := make([]int, len(cols))
	for i, col := range cols {
		src[i], _ = t.Idx(col)
	}
	out := &Table{Header: append([]string(nil), cols...), Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		nrow := make([]string, len(cols))
		for i, j := range src {
			if j < 0 {
				nrow[i] = fill
			} else {
				nrow[i] = row[j]
			}
		}
		out.Rows[r] = nrow
		t.Rows[r] = nil
	}
	t.Rows = nil
	return out
}

// Check verifies that header names are unique and every row has one
// field per header column.
func (t *Table) Check() error {
	seen := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		if seen[h] {
			return fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}
	for r, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("row %d has %d fields, header has %d", r, len(row), len(t.Header))
		}
	}
	return nil
}
