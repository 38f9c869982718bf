// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arvados/harmonize/vtable"
	log "github.com/sirupsen/logrus"
)

// liftedColumns is the column order of the lifted table.
var liftedColumns = []string{
	"chr_hg19", "pos_hg19", "ref", "alt",
	"effect_size", "standard_error", "EAF", "pvalue", "pvalue_het",
	"N_total", "N_case", "N_ctrl",
	"chr_hg38", "pos_hg38",
}

type liftOver struct {
	// liftOver executable
	Exe string
	// directory containing hg17ToHg19.over.chain.gz etc.
	ChainDir string
}

type bedCoord struct {
	chr, pos string
}

// Lift adds hg19 and hg38 coordinates to a preformatted table and
// returns it with liftedColumns. Rows that cannot be lifted to a
// build get NA coordinates on that build.
func (lo *liftOver) Lift(ctx context.Context, t *vtable.Table) (*vtable.Table, error) {
	var src string
	for _, build := range []string{"hg17", "hg18", "hg19", "hg38"} {
		if t.Has("pos_" + build) {
			src = build
			break
		}
	}
	if src == "" {
		return nil, fmt.Errorf("no position column (pos_hg17, pos_hg18, pos_hg19, or pos_hg38) in input")
	}
	idx, err := t.Indexes("chr_"+src, "pos_"+src)
	if err != nil {
		return nil, err
	}
	tmpdir, err := ioutil.TempDir("", "harmonize-liftover-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	input := filepath.Join(tmpdir, "input.bed")
	err = writeBED(input, t, idx[0], idx[1])
	if err != nil {
		return nil, err
	}

	var hg19bed, hg38bed string
	switch src {
	case "hg17", "hg18":
		hg19bed = filepath.Join(tmpdir, "hg19.bed")
		err = lo.run(ctx, input, src+"ToHg19", hg19bed)
		if err != nil {
			return nil, err
		}
		hg38bed = filepath.Join(tmpdir, "hg38.bed")
		err = lo.run(ctx, hg19bed, "hg19ToHg38", hg38bed)
	case "hg19":
		hg19bed = input
		hg38bed = filepath.Join(tmpdir, "hg38.bed")
		err = lo.run(ctx, input, "hg19ToHg38", hg38bed)
	case "hg38":
		hg38bed = input
		hg19bed = filepath.Join(tmpdir, "hg19.bed")
		err = lo.run(ctx, input, "hg38ToHg19", hg19bed)
	}
	if err != nil {
		return nil, err
	}
	hg19, err := readBED(hg19bed)
	if err != nil {
		return nil, err
	}
	hg38, err := readBED(hg38bed)
	if err != nil {
		return nil, err
	}

	chr19 := t.AddColumn("chr_hg19", vtable.NA)
	pos19 := t.AddColumn("pos_hg19", vtable.NA)
	chr38 := t.AddColumn("chr_hg38", vtable.NA)
	pos38 := t.AddColumn("pos_hg38", vtable.NA)
	var lost19, lost38 int
	for i, row := range t.Rows {
		id := i + 2
		if c, ok := hg19[id]; ok {
			row[chr19], row[pos19] = c.chr, c.pos
		} else {
			row[chr19], row[pos19] = vtable.NA, vtable.NA
			lost19++
		}
		if c, ok := hg38[id]; ok {
			row[chr38], row[pos38] = c.chr, c.pos
		} else {
			row[chr38], row[pos38] = vtable.NA, vtable.NA
			lost38++
		}
	}
	log.WithFields(log.Fields{
		"source":    src,
		"rows":      len(t.Rows),
		"lost_hg19": lost19,
		"lost_hg38": lost38,
	}).Info("liftover done")
	return t.Project(liftedColumns, vtable.NA), nil
}

// run lifts in to out using the named chain.
func (lo *liftOver) run(ctx context.Context, in, chain, out string) error {
	chainFile := filepath.Join(lo.ChainDir, chain+".over.chain.gz")
	unlifted := strings.TrimSuffix(out, ".bed") + ".unlifted.bed"
	cmd := exec.CommandContext(ctx, lo.Exe, in, chainFile, out, unlifted)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debugf("running %v", cmd.Args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", lo.Exe, chain, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// writeBED writes one line per row with a positive integer position:
// chrC, pos-1, pos, and a row id (row index + 2, i.e., the line
// number in a file with a header).
func writeBED(fnm string, t *vtable.Table, chrIdx, posIdx int) error {
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for i, row := range t.Rows {
		pos, err := strconv.ParseInt(row[posIdx], 10, 64)
		if err != nil || pos < 1 {
			continue
		}
		fmt.Fprintf(bufw, "chr%s\t%d\t%d\t%d\n", row[chrIdx], pos-1, pos, i+2)
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// readBED returns row id => coordinates (chr prefix stripped, end
// position) from a 4-column BED file.
func readBED(fnm string) (map[int]bedCoord, error) {
	f, err := os.Open(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	coords := map[int]bedCoord{}
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, fmt.Errorf("%s:%d: expected 4 fields, got %d", fnm, lineno, len(fields))
		}
		id, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad row id %q", fnm, lineno, fields[3])
		}
		coords[id] = bedCoord{chr: strings.TrimPrefix(fields[0], "chr"), pos: fields[2]}
	}
	return coords, scanner.Err()
}
