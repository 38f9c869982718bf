// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"

	"github.com/arvados/harmonize/match"
	"github.com/arvados/harmonize/vtable"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// numpyColumns are exported, in this order, as float64 matrix
// columns. Missing and unparseable values become NaN.
var numpyColumns = []string{"effect_size", "standard_error", "EAF", "pvalue"}

func table2array(t *vtable.Table) ([]float64, int, int, error) {
	idx, err := t.Indexes(numpyColumns...)
	if err != nil {
		return nil, 0, 0, err
	}
	rows, cols := len(t.Rows), len(idx)
	out := make([]float64, rows*cols)
	for r, row := range t.Rows {
		for c, i := range idx {
			x, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				x = math.NaN()
			}
			out[r*cols+c] = x
		}
	}
	return out, rows, cols, nil
}

func writeNumpy(w io.Writer, data []float64, rows, cols int) error {
	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(data)
	if err != nil {
		return err
	}
	return bufw.Flush()
}

// writeNumpyLabels writes one csv line per matrix row: row index,
// unique_id, rsid.
func writeNumpyLabels(fnm string, t *vtable.Table) error {
	idx, err := t.Indexes(match.ColUniqueID, "rsid")
	if err != nil {
		return err
	}
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for r, row := range t.Rows {
		fmt.Fprintf(bufw, "%d,%q,%q\n", r, row[idx[0]], row[idx[1]])
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}

type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "-", "harmonized table `file` (tsv or tsv.gz)")
	outputFilename := flags.String("o", "-", "output `file`")
	labelsFilename := flags.String("output-labels", "", "if non-empty, write row labels (csv) to `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	t, err := readTable(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	data, rows, cols, err := table2array(t)
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	log.Infof("writing %d x %d matrix", rows, cols)
	err = writeNumpy(output, data, rows, cols)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	if *labelsFilename != "" {
		err = writeNumpyLabels(*labelsFilename, t)
		if err != nil {
			return 1
		}
	}
	return 0
}
