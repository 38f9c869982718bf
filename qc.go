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
	"sort"
	"strconv"

	"github.com/arvados/harmonize/vtable"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// chisq1Median is the median of the chi-squared distribution with one
// degree of freedom.
const chisq1Median = 0.454936423119572

type qcReport struct {
	Rows         int
	WithRSID     int // catalogue-matched rows
	WithoutRSID  int // rows resolved against the reference genome
	EffectN      int
	EffectMean   float64
	EffectSD     float64
	PvalueN      int
	PvalueMedian float64
	LambdaGC     float64
}

// floats returns the parseable, finite values of the named column.
func floats(t *vtable.Table, col string) ([]float64, error) {
	vals, err := t.Col(col)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, v := range vals {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out = append(out, x)
	}
	return out, nil
}

// median returns the empirical median of x, sorting x in place.
func median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	return stat.Quantile(0.5, stat.Empirical, x, nil)
}

// genomicInflation returns the genomic inflation factor (lambda GC)
// for the given p-values: the median association chi-squared
// statistic divided by its expected value under the null. P-values
// outside (0, 1] are ignored.
func genomicInflation(pvalues []float64) float64 {
	chisq := make([]float64, 0, len(pvalues))
	for _, p := range pvalues {
		if p <= 0 || p > 1 {
			continue
		}
		z := distuv.UnitNormal.Quantile(p / 2)
		chisq = append(chisq, z*z)
	}
	return median(chisq) / chisq1Median
}

func computeQC(t *vtable.Table) (*qcReport, error) {
	rep := &qcReport{Rows: len(t.Rows)}
	rsid, err := t.Col("rsid")
	if err != nil {
		return nil, err
	}
	for _, v := range rsid {
		if vtable.IsMissing(v) {
			rep.WithoutRSID++
		} else {
			rep.WithRSID++
		}
	}
	effects, err := floats(t, "effect_size")
	if err != nil {
		return nil, err
	}
	rep.EffectN = len(effects)
	if len(effects) > 0 {
		rep.EffectMean, rep.EffectSD = stat.MeanStdDev(effects, nil)
	}
	pvalues, err := floats(t, "pvalue")
	if err != nil {
		return nil, err
	}
	rep.PvalueN = len(pvalues)
	rep.LambdaGC = genomicInflation(pvalues)
	rep.PvalueMedian = median(pvalues)
	return rep, nil
}

func (rep *qcReport) WriteTo(w io.Writer) (int64, error) {
	bufw := bufio.NewWriter(w)
	var n int64
	for _, kv := range []struct {
		k string
		v interface{}
	}{
		{"rows", rep.Rows},
		{"rows_with_rsid", rep.WithRSID},
		{"rows_without_rsid", rep.WithoutRSID},
		{"effect_size_n", rep.EffectN},
		{"effect_size_mean", rep.EffectMean},
		{"effect_size_sd", rep.EffectSD},
		{"pvalue_n", rep.PvalueN},
		{"pvalue_median", rep.PvalueMedian},
		{"lambda_gc", rep.LambdaGC},
	} {
		c, err := fmt.Fprintf(bufw, "%s\t%v\n", kv.k, kv.v)
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bufw.Flush()
}

type qccmd struct{}

func (cmd *qccmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "harmonized table `file` (tsv or tsv.gz)")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	t, err := readTable(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	rep, err := computeQC(t)
	if err != nil {
		return 1
	}
	if rep.LambdaGC > 1.1 {
		log.Warnf("genomic inflation factor %.3f suggests population stratification or other confounding", rep.LambdaGC)
	}
	_, err = rep.WriteTo(stdout)
	if err != nil {
		return 1
	}
	return 0
}
