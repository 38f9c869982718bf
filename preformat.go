// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arvados/harmonize/vtable"
	log "github.com/sirupsen/logrus"
)

// canonicalColumns are added (filled with NA) if the raw file does
// not provide them.
var canonicalColumns = []string{
	"rsid", "chr", "pos", "ref", "alt",
	"effect_size", "standard_error", "EAF", "pvalue", "pvalue_het",
	"N_total_column", "N_case_column", "N_ctrl_column",
}

var sourceBuilds = map[string]bool{"hg17": true, "hg18": true, "hg19": true, "hg38": true}

var chromAlias = map[string]string{"23": "X", "24": "Y", "25": "M"}

var ambiguousAllele = map[string]bool{"I": true, "D": true, "IND": true, "DEL": true}

var badEffect = map[string]bool{"Nan": true, "NaN": true, "NA": true, "Inf": true, "-Inf": true, "inf": true, "-inf": true}

func parseDelim(s string) (rune, error) {
	switch s {
	case "\t", "tab":
		return '\t', nil
	case ",", "comma":
		return ',', nil
	case "space":
		return ' ', nil
	}
	return 0, fmt.Errorf("invalid column delimiter %q", s)
}

// rawInputPath returns the location of the legend's file under dir.
func rawInputPath(legend *Legend, dir string) (string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("raw input directory: %w", err)
	} else if !fi.IsDir() {
		return "", fmt.Errorf("raw input directory %s is not a directory", dir)
	}
	fnm := filepath.Join(dir, strings.TrimPrefix(legend.FilePath, "/"))
	fi, err = os.Stat(fnm)
	if err != nil {
		return "", fmt.Errorf("raw input file: %w", err)
	} else if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("raw input file %s is not a regular file", fnm)
	}
	return fnm, nil
}

// preformat reads the raw summary statistics file described by
// legend and normalizes it: canonical column names, cleaned
// chromosome names and alleles, log odds ratios, sample size columns,
// and build-tagged coordinate columns (chr_hgNN, pos_hgNN).
func preformat(legend *Legend, rawInputDir string) (*vtable.Table, error) {
	if !sourceBuilds[legend.HgVersion] {
		return nil, fmt.Errorf("unsupported hg_version %q", legend.HgVersion)
	}
	delim, err := parseDelim(legend.ColumnDelim)
	if err != nil {
		return nil, err
	}
	fnm, err := rawInputPath(legend, rawInputDir)
	if err != nil {
		return nil, err
	}
	log.Infof("reading raw input file %s", fnm)
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := vtable.ReadDelimited(f, delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	if len(t.Header) < 5 {
		return nil, fmt.Errorf("%s: fewer than 5 columns, column delimiter %q is likely misspecified", fnm, legend.ColumnDelim)
	}
	return normalize(t, legend)
}

func normalize(t *vtable.Table, legend *Legend) (*vtable.Table, error) {
	rename := legend.columnMap()
	for i, h := range t.Header {
		if canonical, ok := rename[h]; ok {
			t.Header[i] = canonical
		}
	}
	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("after renaming columns: %w", err)
	}
	for _, col := range canonicalColumns {
		t.AddColumn(col, vtable.NA)
	}
	idx, err := t.Indexes("chr", "ref", "alt", "effect_size")
	if err != nil {
		return nil, err
	}
	chrIdx, refIdx, altIdx, effIdx := idx[0], idx[1], idx[2], idx[3]
	nraw := len(t.Rows)

	for _, row := range t.Rows {
		chr := strings.TrimPrefix(row[chrIdx], "chr")
		if alias, ok := chromAlias[chr]; ok {
			chr = alias
		}
		row[chrIdx] = chr
		row[refIdx] = strings.ToUpper(row[refIdx])
		row[altIdx] = strings.ToUpper(row[altIdx])
	}
	t.Filter(func(row []string) bool {
		return !ambiguousAllele[row[refIdx]] &&
			!ambiguousAllele[row[altIdx]] &&
			!badEffect[row[effIdx]]
	})
	log.Debugf("dropped %d rows with indel alleles or missing effect sizes", nraw-len(t.Rows))

	effects := make([]float64, len(t.Rows))
	allPositive, anyNegative := len(t.Rows) > 0, false
	for i, row := range t.Rows {
		effects[i], err = strconv.ParseFloat(row[effIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: effect_size %q: %w", i+1, row[effIdx], err)
		}
		if effects[i] <= 0 {
			allPositive = false
		}
		if effects[i] < 0 {
			anyNegative = true
		}
	}
	switch legend.EffectIsOR {
	case "N":
		if allPositive {
			log.Warn("all effect sizes are positive yet effect_is_OR is N: check that effect estimates are regression coefficients and not odds ratios")
		}
	case "Y":
		if anyNegative {
			log.Warn("some effect sizes are negative yet effect_is_OR is Y: check that effect estimates are odds or hazard ratios and not regression coefficients")
		}
		kept := t.Rows[:0]
		for i, row := range t.Rows {
			beta := math.Log(effects[i])
			if math.IsNaN(beta) || math.IsInf(beta, 0) {
				continue
			}
			row[effIdx] = vtable.FormatFloat(beta)
			kept = append(kept, row)
		}
		t.Rows = kept
	}

	if err := sampleSizes(t, legend); err != nil {
		return nil, err
	}

	if err := t.Rename("pos", "pos_"+legend.HgVersion); err != nil {
		return nil, err
	}
	if err := t.Rename("chr", "chr_"+legend.HgVersion); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"raw":  nraw,
		"kept": len(t.Rows),
	}).Info("preformat done")
	return t, nil
}

// sampleSizes fills N_total, N_case and N_ctrl from raw columns or
// from study-wide values in the legend, and derives whichever one is
// missing from the other two.
func sampleSizes(t *vtable.Table, legend *Legend) error {
	for _, v := range []struct{ name, column, value string }{
		{"N_total", legend.NTotalColumn, legend.NTotal},
		{"N_case", legend.NCaseColumn, legend.NCase},
		{"N_ctrl", legend.NCtrlColumn, legend.NCtrl},
	} {
		if v.column != vtable.NA {
			if err := t.Rename(v.name+"_column", v.name); err != nil {
				return err
			}
		} else if v.value != vtable.NA {
			i := t.AddColumn(v.name, v.value)
			for _, row := range t.Rows {
				row[i] = v.value
			}
		}
	}
	total := t.AddColumn("N_total", vtable.NA)
	ncase := t.AddColumn("N_case", vtable.NA)
	ctrl := t.AddColumn("N_ctrl", vtable.NA)
	num := func(s string) (float64, bool) {
		if vtable.IsMissing(s) {
			return 0, false
		}
		x, err := strconv.ParseFloat(s, 64)
		return x, err == nil
	}
	for _, row := range t.Rows {
		nt, okT := num(row[total])
		nc, okC := num(row[ncase])
		nn, okN := num(row[ctrl])
		switch {
		case okC && okN:
			row[total] = vtable.FormatFloat(nc + nn)
		case okT && okN:
			row[ncase] = vtable.FormatFloat(nt - nn)
		case okT && okC:
			row[ctrl] = vtable.FormatFloat(nt - nc)
		}
	}
	return nil
}
