// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"strings"

	"github.com/arvados/harmonize/vtable"
	"gopkg.in/check.v1"
)

type preformatSuite struct{}

var _ = check.Suite(&preformatSuite{})

func testLegend(c *check.C, trait string) *Legend {
	legend, err := selectLegend(testLegendTable(c), trait)
	c.Assert(err, check.IsNil)
	return legend
}

func column(c *check.C, t *vtable.Table, col string) []string {
	vals, err := t.Col(col)
	c.Assert(err, check.IsNil)
	return vals
}

func (s *preformatSuite) TestNormalize(c *check.C) {
	legend := testLegend(c, "height")
	legend.NTotal = "NA"
	legend.NTotalColumn = "N"
	legend.NCase = "1000"
	t, err := vtable.ReadTSV(strings.NewReader(tsv(
		"SNP\tCHR\tBP\tA1\tA2\tBETA\tSE\tFREQ\tP\tN\tINFO",
		"rs1\tchr1\t100\ta\tg\t0.5\t0.1\t0.2\t0.01\t3000\t0.9",
		"rs2\t23\t200\tA\tG\t-0.3\t0.1\t0.2\t0.01\t5000\t0.9",
		"rs3\t2\t300\tI\tD\t0.1\t0.1\t0.2\t0.01\t5000\t0.9",
		"rs4\t2\t400\tC\tDEL\t0.1\t0.1\t0.2\t0.01\t5000\t0.9",
		"rs5\t2\t500\tC\tT\tNA\t0.1\t0.2\t0.01\t5000\t0.9",
		"rs6\tchr25\t600\tC\tT\tInf\t0.1\t0.2\t0.01\t5000\t0.9",
	)))
	c.Assert(err, check.IsNil)
	t, err = normalize(t, legend)
	c.Assert(err, check.IsNil)
	c.Check(t.Has("pos_hg19"), check.Equals, true)
	c.Check(t.Has("chr_hg19"), check.Equals, true)
	c.Check(t.Has("pos"), check.Equals, false)
	c.Check(t.Has("INFO"), check.Equals, true)
	c.Check(column(c, t, "rsid"), check.DeepEquals, []string{"rs1", "rs2"})
	c.Check(column(c, t, "chr_hg19"), check.DeepEquals, []string{"1", "X"})
	c.Check(column(c, t, "pos_hg19"), check.DeepEquals, []string{"100", "200"})
	c.Check(column(c, t, "ref"), check.DeepEquals, []string{"A", "A"})
	c.Check(column(c, t, "alt"), check.DeepEquals, []string{"G", "G"})
	c.Check(column(c, t, "effect_size"), check.DeepEquals, []string{"0.5", "-0.3"})
	c.Check(column(c, t, "pvalue_het"), check.DeepEquals, []string{"NA", "NA"})
	c.Check(column(c, t, "N_total"), check.DeepEquals, []string{"3000", "5000"})
	c.Check(column(c, t, "N_case"), check.DeepEquals, []string{"1000", "1000"})
	c.Check(column(c, t, "N_ctrl"), check.DeepEquals, []string{"2000", "4000"})
}

func (s *preformatSuite) TestOddsRatio(c *check.C) {
	legend := testLegend(c, "asthma")
	t, err := vtable.ReadTSV(strings.NewReader(tsv(
		"SNP\tCHR\tBP\tA1\tA2\tOR\tSE\tFREQ\tP",
		"rs1\t1\t100\tA\tG\t2\t0.1\t0.2\t0.01",
		"rs2\t1\t200\tA\tG\t1\t0.1\t0.2\t0.01",
		"rs3\t1\t300\tA\tG\t0\t0.1\t0.2\t0.01",
		"rs4\t1\t400\tA\tG\t-1\t0.1\t0.2\t0.01",
	)))
	c.Assert(err, check.IsNil)
	t, err = normalize(t, legend)
	c.Assert(err, check.IsNil)
	c.Check(column(c, t, "rsid"), check.DeepEquals, []string{"rs1", "rs2"})
	c.Check(column(c, t, "effect_size"), check.DeepEquals, []string{"0.6931471805599453", "0"})
	c.Check(column(c, t, "chr_hg38"), check.DeepEquals, []string{"1", "1"})
	c.Check(column(c, t, "N_total"), check.DeepEquals, []string{"1000", "1000"})
}

func (s *preformatSuite) TestBadEffect(c *check.C) {
	t, err := vtable.ReadTSV(strings.NewReader(tsv(
		"SNP\tCHR\tBP\tA1\tA2\tBETA\tSE\tFREQ\tP",
		"rs1\t1\t100\tA\tG\t0.5\t0.1\t0.2\t0.01",
		"rs2\t1\t200\tA\tG\tlarge\t0.1\t0.2\t0.01",
	)))
	c.Assert(err, check.IsNil)
	_, err = normalize(t, testLegend(c, "height"))
	c.Check(err, check.ErrorMatches, `row 2: effect_size "large": .*invalid syntax`)
}

func (s *preformatSuite) TestMissingColumn(c *check.C) {
	t, err := vtable.ReadTSV(strings.NewReader(tsv(
		"SNP\tCHROM\tBP\tA1\tA2\tBETA",
		"rs1\t1\t100\tA\tG\t0.5",
	)))
	c.Assert(err, check.IsNil)
	t, err = normalize(t, testLegend(c, "height"))
	c.Assert(err, check.IsNil)
	// the legend's chr column is absent, so every row has NA
	c.Check(column(c, t, "chr_hg19"), check.DeepEquals, []string{"NA"})
}

func (s *preformatSuite) TestSampleSizes(c *check.C) {
	legend := testLegend(c, "height")
	legend.NTotal, legend.NCaseColumn, legend.NCtrlColumn = "NA", "cases", "controls"
	t := &vtable.Table{
		Header: []string{"N_case_column", "N_ctrl_column", "N_total_column"},
		Rows: [][]string{
			{"100", "200", "NA"},
			{"NA", "200", "NA"},
		},
	}
	c.Assert(sampleSizes(t, legend), check.IsNil)
	c.Check(column(c, t, "N_total"), check.DeepEquals, []string{"300", "NA"})
	c.Check(column(c, t, "N_case"), check.DeepEquals, []string{"100", "NA"})
	c.Check(column(c, t, "N_ctrl"), check.DeepEquals, []string{"200", "200"})
}

func (s *preformatSuite) TestPreformat(c *check.C) {
	rawdir := c.MkDir()
	writeFile(c, rawdir+"/asthma.csv", strings.Join([]string{
		"SNP,CHR,BP,A1,A2,OR,SE,FREQ,P",
		"rs1,1,100,A,G,2,0.1,0.2,0.01",
		"rs2,X,200,c,t,1,0.1,0.2,0.01",
	}, "\n")+"\n")
	legend := testLegend(c, "asthma")
	t, err := preformat(legend, rawdir)
	c.Assert(err, check.IsNil)
	c.Check(column(c, t, "pos_hg38"), check.DeepEquals, []string{"100", "200"})
	c.Check(column(c, t, "ref"), check.DeepEquals, []string{"A", "C"})
	c.Check(column(c, t, "effect_size"), check.DeepEquals, []string{"0.6931471805599453", "0"})
	c.Check(column(c, t, "pvalue"), check.DeepEquals, []string{"0.01", "0.01"})
	c.Check(column(c, t, "N_total"), check.DeepEquals, []string{"1000", "1000"})

	legend.ColumnDelim = "tab"
	_, err = preformat(legend, rawdir)
	c.Check(err, check.ErrorMatches, `.*asthma.csv: fewer than 5 columns, column delimiter "tab" is likely misspecified`)

	legend.ColumnDelim = "semicolon"
	_, err = preformat(legend, rawdir)
	c.Check(err, check.ErrorMatches, `invalid column delimiter "semicolon"`)

	legend.ColumnDelim = "comma"
	legend.FilePath = "missing.csv"
	_, err = preformat(legend, rawdir)
	c.Check(err, check.ErrorMatches, `raw input file: .*no such file or directory`)

	legend.HgVersion = "hg99"
	_, err = preformat(legend, rawdir)
	c.Check(err, check.ErrorMatches, `unsupported hg_version "hg99"`)
}
