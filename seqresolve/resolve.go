// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seqresolve

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arvados/harmonize/vtable"
	"github.com/sirupsen/logrus"
)

// Columns read by Resolve, in addition to those used by
// vtable.Flipper.
const (
	ColChrom = "chr_hg38"
	ColPos   = "pos_hg38"
)

// Region returns the faidx region for a single base. prefix is
// prepended to the chromosome name.
func Region(prefix, chrom string, pos int) string {
	return fmt.Sprintf("%s%s:%d-%d", prefix, chrom, pos, pos)
}

// Resolver decides the orientation of residual variants by looking
// up the hg38 reference base at each variant's position.
type Resolver struct {
	Pool *Pool
	// Prepended to chromosome names in lookups (e.g., "chr" for
	// UCSC-style references).
	RegionPrefix string
	Logger       logrus.FieldLogger
}

// Resolve consumes t and returns a table with the same columns
// holding the rows whose reference base is one of their alleles.
// Rows whose reference base is the alternate allele are flipped.
// Rows without a usable hg38 position, whose lookup failed, or whose
// reference base matches neither allele are dropped.
func (r *Resolver) Resolve(ctx context.Context, t *vtable.Table) (*vtable.Table, Stats, error) {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	idx, err := t.Indexes(ColChrom, ColPos, vtable.ColRef, vtable.ColAlt)
	if err != nil {
		return nil, Stats{}, err
	}
	flipper, err := vtable.NewFlipper(t)
	if err != nil {
		return nil, Stats{}, err
	}
	chromIdx, posIdx, refIdx, altIdx := idx[0], idx[1], idx[2], idx[3]

	var regions []string
	// rowOf[i] is the row index for regions[i]
	var rowOf []int
	for i, row := range t.Rows {
		pos, err := strconv.Atoi(row[posIdx])
		if err != nil || pos < 1 || vtable.IsMissing(row[chromIdx]) {
			continue
		}
		regions = append(regions, Region(r.RegionPrefix, row[chromIdx], pos))
		rowOf = append(rowOf, i)
	}

	slots, stats, err := r.Pool.Lookup(ctx, regions)
	if err != nil {
		return nil, stats, err
	}

	out := &vtable.Table{Header: t.Header}
	for i, slot := range slots {
		row := t.Rows[rowOf[i]]
		if !slot.OK || slot.Base == Unknown {
			continue
		}
		switch slot.Base {
		case row[altIdx]:
			if err := flipper.Flip(row); err != nil {
				return nil, stats, fmt.Errorf("flipping %s: %w", regions[i], err)
			}
			stats.Flipped++
			out.Rows = append(out.Rows, row)
		case row[refIdx]:
			out.Rows = append(out.Rows, row)
		}
	}
	stats.Accepted = len(out.Rows)
	stats.Discarded = len(t.Rows) - stats.Accepted
	t.Rows = nil

	logger.WithFields(logrus.Fields{
		"input":     stats.Accepted + stats.Discarded,
		"accepted":  stats.Accepted,
		"flipped":   stats.Flipped,
		"discarded": stats.Discarded,
	}).Info("sequence resolution done")
	return out, stats, nil
}
