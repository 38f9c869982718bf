// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/arvados/harmonize/vtable"
	"gopkg.in/check.v1"
)

type qcSuite struct{}

var _ = check.Suite(&qcSuite{})

func (s *qcSuite) TestGenomicInflation(c *check.C) {
	// p=0.5 gives the median chi-squared statistic of the null
	// distribution.
	lambda := genomicInflation([]float64{0.9, 0.5, 0.1, 0.5, 0.5})
	c.Check(math.Abs(lambda-1) < 1e-9, check.Equals, true, check.Commentf("lambda %v", lambda))

	lambda = genomicInflation([]float64{0.05, 0.05, 0.5})
	c.Check(math.Abs(lambda-3.841458820694124/chisq1Median) < 1e-6, check.Equals, true, check.Commentf("lambda %v", lambda))

	c.Check(math.IsNaN(genomicInflation(nil)), check.Equals, true)
	c.Check(math.IsNaN(genomicInflation([]float64{0, 1.5, -1})), check.Equals, true)
}

func (s *qcSuite) TestComputeQC(c *check.C) {
	t, err := vtable.ReadTSV(strings.NewReader(tsv(
		"rsid\teffect_size\tpvalue",
		"rs1\t1\t0.5",
		"NA\t2\tNA",
		"rs3\t3\t0.25",
		"rs4\tNaN\t0.75",
	)))
	c.Assert(err, check.IsNil)
	rep, err := computeQC(t)
	c.Assert(err, check.IsNil)
	c.Check(rep.Rows, check.Equals, 4)
	c.Check(rep.WithRSID, check.Equals, 3)
	c.Check(rep.WithoutRSID, check.Equals, 1)
	c.Check(rep.EffectN, check.Equals, 3)
	c.Check(rep.EffectMean, check.Equals, 2.0)
	c.Check(rep.EffectSD, check.Equals, 1.0)
	c.Check(rep.PvalueN, check.Equals, 3)
	c.Check(rep.PvalueMedian, check.Equals, 0.5)

	_, err = computeQC(&vtable.Table{Header: []string{"rsid", "effect_size"}})
	c.Check(err, check.ErrorMatches, `.*pvalue.*`)
}

func (s *qcSuite) TestCommand(c *check.C) {
	tmpdir := c.MkDir()
	fnm := writeFile(c, tmpdir+"/harmonized.tsv", tsv(
		"rsid\teffect_size\tpvalue",
		"rs1\t0.5\t0.5",
		"NA\t-0.5\t0.5",
	))
	var stdout, stderr bytes.Buffer
	exited := (&qccmd{}).RunCommand("qc", []string{"-i", fnm}, nil, &stdout, &stderr)
	c.Assert(exited, check.Equals, 0, check.Commentf("stderr: %s", stderr.String()))
	c.Check(stdout.String(), check.Matches, `(?ms)rows\t2\nrows_with_rsid\t1\nrows_without_rsid\t1\neffect_size_n\t2\neffect_size_mean\t0\n.*pvalue_median\t0.5\nlambda_gc\t(0\.9999\d*|1(\.0000\d*)?)\n`)

	exited = (&qccmd{}).RunCommand("qc", []string{"-i", tmpdir + "/missing.tsv"}, nil, &stdout, &stderr)
	c.Check(exited, check.Equals, 1)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("write failed") }

func (s *qcSuite) TestWriteTo(c *check.C) {
	rep := &qcReport{Rows: 12345678, WithRSID: 12345000, WithoutRSID: 678, EffectN: 12345678, EffectMean: 0.001234, EffectSD: 0.25, PvalueN: 12345678, PvalueMedian: 0.4987, LambdaGC: 1.0123}
	var buf bytes.Buffer
	n, err := rep.WriteTo(&buf)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, int64(buf.Len()))
	c.Check(strings.HasPrefix(buf.String(), "rows\t12345678\nrows_with_rsid\t12345000\n"), check.Equals, true)

	_, err = rep.WriteTo(failWriter{})
	c.Check(err, check.ErrorMatches, `write failed`)
}
