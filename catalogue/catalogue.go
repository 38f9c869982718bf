// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package catalogue loads a reference variant catalogue (dbSNP-like,
// with population allele frequency annotations) into a map keyed by
// genomic identity.
package catalogue

import (
	"fmt"
	"io"

	"github.com/arvados/harmonize/vtable"
)

// KeyColumns are the catalogue columns that make up a Key, in Key
// field order.
var KeyColumns = []string{"chr", "pos_hg19", "ref", "alt", "pos_hg38"}

// Key identifies a variant by hg19 chromosome and position, reference
// and alternate alleles, and hg38 position.
type Key struct {
	Chrom string
	Pos19 string
	Ref   string
	Alt   string
	Pos38 string
}

// Flipped returns the key with reference and alternate swapped.
func (k Key) Flipped() Key {
	k.Ref, k.Alt = k.Alt, k.Ref
	return k
}

// Catalogue maps keys to annotation values. It is not modified after
// loading, so concurrent lookups need no locking.
type Catalogue struct {
	annotations []string
	entries     map[Key][]string
}

// Load reads a tab-separated catalogue with a header row. The columns
// named in KeyColumns are required; every other column is kept as an
// annotation. When a key appears more than once, the last row wins.
func Load(r io.Reader) (*Catalogue, error) {
	cat := &Catalogue{entries: map[Key][]string{}}
	var keyIdx []int
	var annIdx []int
	err := vtable.ScanTSV(r, func(header []string) error {
		t := &vtable.Table{Header: header}
		if err := t.Check(); err != nil {
			return fmt.Errorf("catalogue header: %w", err)
		}
		var err error
		keyIdx, err = t.Indexes(KeyColumns...)
		if err != nil {
			return fmt.Errorf("catalogue header: %w", err)
		}
		iskey := map[int]bool{}
		for _, i := range keyIdx {
			iskey[i] = true
		}
		for i, h := range header {
			if !iskey[i] {
				annIdx = append(annIdx, i)
				cat.annotations = append(cat.annotations, h)
			}
		}
		return nil
	}, func(row []string) error {
		ann := make([]string, len(annIdx))
		for i, j := range annIdx {
			ann[i] = row[j]
		}
		cat.entries[Key{
			Chrom: row[keyIdx[0]],
			Pos19: row[keyIdx[1]],
			Ref:   row[keyIdx[2]],
			Alt:   row[keyIdx[3]],
			Pos38: row[keyIdx[4]],
		}] = ann
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}
	return cat, nil
}

// Annotations returns the names of the non-key columns, in the order
// their values are returned by Lookup.
func (cat *Catalogue) Annotations() []string {
	return cat.annotations
}

// Lookup returns the annotation values for k. The returned slice is
// shared and must not be modified.
func (cat *Catalogue) Lookup(k Key) ([]string, bool) {
	ann, ok := cat.entries[k]
	return ann, ok
}

// Len returns the number of distinct keys.
func (cat *Catalogue) Len() int {
	return len(cat.entries)
}
