// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package match joins a lifted summary statistics table against a
// reference catalogue, recovering variants whose alleles are recorded
// in the opposite orientation.
package match

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/arvados/harmonize/catalogue"
	"github.com/arvados/harmonize/vtable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ColUniqueID is the deduplication key column appended to matched
// rows.
const ColUniqueID = "unique_id"

// InputColumns are the columns the matcher reads from its input.
var InputColumns = []string{"chr_hg19", "pos_hg19", "ref", "alt", "pos_hg38"}

// UniqueID returns chrom_pos_ref_alt.
func UniqueID(chrom, pos, ref, alt string) string {
	return strings.Join([]string{chrom, pos, ref, alt}, "_")
}

// Stats counts what happened to input rows.
type Stats struct {
	Input          int
	Direct         int // rows matching the catalogue as given
	FlipCandidates int // rows matching with ref/alt swapped
	FlipCollisions int // flip candidates dropped because a direct match has the same id
	Duplicates     int // matched rows dropped by unique_id dedup
	Matched        int
	Residual       int
	MissingCoords  int // unmatched rows dropped for lack of hg19/hg38 coordinates
}

// Result is the output of Match.
type Result struct {
	// Matched has the input columns, then the catalogue's
	// annotation columns, then unique_id. unique_id values are
	// distinct.
	Matched *vtable.Table
	// Residual has the input columns. Its rows matched neither
	// orientation and have coordinates on both builds.
	Residual *vtable.Table
	Stats    Stats
}

// Matcher joins tables against a catalogue.
type Matcher struct {
	Catalogue *catalogue.Catalogue
	// Number of goroutines probing the catalogue (default
	// GOMAXPROCS).
	Parallel int
	// Rows per probing task (default 10000).
	BlockSize int
	Logger    logrus.FieldLogger
}

type cols struct {
	chr19, pos19, ref, alt, pos38 int
}

func (c cols) key(row []string) catalogue.Key {
	return catalogue.Key{
		Chrom: row[c.chr19],
		Pos19: row[c.pos19],
		Ref:   row[c.ref],
		Alt:   row[c.alt],
		Pos38: row[c.pos38],
	}
}

func (c cols) uniqueID(row []string) string {
	return UniqueID(row[c.chr19], row[c.pos19], row[c.ref], row[c.alt])
}

// Match consumes in and splits it into matched and residual tables.
func (m *Matcher) Match(ctx context.Context, in *vtable.Table) (*Result, error) {
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	idx, err := in.Indexes(InputColumns...)
	if err != nil {
		return nil, err
	}
	c := cols{chr19: idx[0], pos19: idx[1], ref: idx[2], alt: idx[3], pos38: idx[4]}
	res := &Result{Stats: Stats{Input: len(in.Rows)}}

	matchedHeader := append([]string(nil), in.Header...)
	if in.Has(ColUniqueID) {
		return nil, fmt.Errorf("input already has a %s column", ColUniqueID)
	}
	for _, ann := range m.Catalogue.Annotations() {
		if in.Has(ann) {
			return nil, fmt.Errorf("catalogue annotation column %q conflicts with input column", ann)
		}
		matchedHeader = append(matchedHeader, ann)
	}
	matchedHeader = append(matchedHeader, ColUniqueID)
	flipper, err := vtable.NewFlipper(&vtable.Table{Header: matchedHeader})
	if err != nil {
		return nil, err
	}

	direct, flipped, err := m.probe(ctx, in.Rows, c)
	if err != nil {
		return nil, err
	}

	var merged [][]string
	mergedIDs := map[string]bool{}
	for _, row := range direct {
		if row != nil {
			merged = append(merged, row)
			mergedIDs[row[len(row)-1]] = true
		}
	}
	res.Stats.Direct = len(merged)

	var candidates [][]string
	for _, row := range flipped {
		if row == nil {
			continue
		}
		res.Stats.FlipCandidates++
		if mergedIDs[row[len(row)-1]] {
			res.Stats.FlipCollisions++
			continue
		}
		candidates = append(candidates, row)
	}
	for _, row := range candidates {
		if err := flipper.Flip(row); err != nil {
			return nil, fmt.Errorf("flipping %s: %w", row[len(row)-1], err)
		}
		row[len(row)-1] = c.uniqueID(row)
	}

	union := append(merged, candidates...)
	seen := make(map[string]bool, len(union))
	dedup := union[:0]
	for _, row := range union {
		id := row[len(row)-1]
		if seen[id] {
			res.Stats.Duplicates++
			continue
		}
		seen[id] = true
		dedup = append(dedup, row)
	}
	res.Matched = &vtable.Table{Header: matchedHeader, Rows: dedup}
	res.Stats.Matched = len(dedup)

	type allelePos struct{ chrom, pos, ref, alt string }
	known := make(map[allelePos]bool, len(dedup)*2)
	for _, row := range dedup {
		known[allelePos{row[c.chr19], row[c.pos19], row[c.ref], row[c.alt]}] = true
		known[allelePos{row[c.chr19], row[c.pos19], row[c.alt], row[c.ref]}] = true
	}
	res.Residual = &vtable.Table{Header: in.Header}
	for i, row := range in.Rows {
		in.Rows[i] = nil
		if known[allelePos{row[c.chr19], row[c.pos19], row[c.ref], row[c.alt]}] {
			continue
		}
		if vtable.IsMissing(row[c.pos19]) || vtable.IsMissing(row[c.pos38]) {
			res.Stats.MissingCoords++
			continue
		}
		res.Residual.Rows = append(res.Residual.Rows, row)
	}
	in.Rows = nil
	res.Stats.Residual = len(res.Residual.Rows)

	logger.WithFields(logrus.Fields{
		"input":           res.Stats.Input,
		"direct":          res.Stats.Direct,
		"flip_candidates": res.Stats.FlipCandidates,
		"flip_collisions": res.Stats.FlipCollisions,
		"duplicates":      res.Stats.Duplicates,
		"matched":         res.Stats.Matched,
		"residual":        res.Stats.Residual,
		"missing_coords":  res.Stats.MissingCoords,
	}).Info("catalogue matching done")
	return res, nil
}

// probe looks up every row in both orientations. direct[i] and
// flipped[i] are new rows (input fields, annotations, unique_id) for
// input row i, or nil if the lookup missed. Each task writes only its
// own block of the output slices.
func (m *Matcher) probe(ctx context.Context, rows [][]string, c cols) (direct, flipped [][]string, err error) {
	direct = make([][]string, len(rows))
	flipped = make([][]string, len(rows))
	blockSize := m.BlockSize
	if blockSize < 1 {
		blockSize = 10000
	}
	parallel := m.Parallel
	if parallel < 1 {
		parallel = runtime.GOMAXPROCS(0)
	}
	nann := len(m.Catalogue.Annotations())
	annotate := func(row, ann []string) []string {
		out := make([]string, 0, len(row)+nann+1)
		out = append(out, row...)
		out = append(out, ann...)
		// unique_id comes from the fields as given, even for
		// flip candidates, so they can be compared against
		// direct matches before the swap is applied.
		return append(out, c.uniqueID(row))
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for start := 0; start < len(rows); start += blockSize {
		start, end := start, start+blockSize
		if end > len(rows) {
			end = len(rows)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				row := rows[i]
				key := c.key(row)
				if ann, ok := m.Catalogue.Lookup(key); ok {
					direct[i] = annotate(row, ann)
				}
				if ann, ok := m.Catalogue.Lookup(key.Flipped()); ok {
					flipped[i] = annotate(row, ann)
				}
			}
			return nil
		})
	}
	err = g.Wait()
	return
}
