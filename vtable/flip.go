// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vtable

import (
	"fmt"
	"strconv"
)

// Column names used by the allele flip.
const (
	ColRef    = "ref"
	ColAlt    = "alt"
	ColEffect = "effect_size"
	ColEAF    = "EAF"
)

// Flipper reverses the orientation of a row: it swaps the reference
// and alternate alleles, negates the effect size, and replaces the
// effect allele frequency e with 1-e.
type Flipper struct {
	ref, alt, effect, eaf int
}

// NewFlipper locates the ref, alt, effect_size and EAF columns of t.
func NewFlipper(t *Table) (Flipper, error) {
	idx, err := t.Indexes(ColRef, ColAlt, ColEffect, ColEAF)
	if err != nil {
		return Flipper{}, err
	}
	return Flipper{ref: idx[0], alt: idx[1], effect: idx[2], eaf: idx[3]}, nil
}

// Flip modifies row in place. The effect size must parse as a number.
// A missing allele frequency is left as is; any other unparseable
// frequency is an error. On error the row is unchanged.
func (f Flipper) Flip(row []string) error {
	es, err := strconv.ParseFloat(row[f.effect], 64)
	if err != nil {
		return fmt.Errorf("effect_size %q: %w", row[f.effect], err)
	}
	eaf := row[f.eaf]
	if !IsMissing(eaf) {
		e, err := strconv.ParseFloat(eaf, 64)
		if err != nil {
			return fmt.Errorf("EAF %q: %w", eaf, err)
		}
		eaf = FormatFloat(1 - e)
	}
	row[f.ref], row[f.alt] = row[f.alt], row[f.ref]
	row[f.effect] = FormatFloat(-es)
	row[f.eaf] = eaf
	return nil
}

// FormatFloat renders x in the shortest decimal form that parses back
// to the same value, without an exponent.
func FormatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
