// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bytes"
	"io/ioutil"
	"math"
	"os"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type exportNumpySuite struct{}

var _ = check.Suite(&exportNumpySuite{})

func (s *exportNumpySuite) TestExport(c *check.C) {
	tmpdir := c.MkDir()
	fnm := writeFile(c, tmpdir+"/harmonized.tsv", tsv(
		"rsid\tunique_id\teffect_size\tstandard_error\tEAF\tpvalue",
		"rs1\t1_100_A_G\t0.5\t0.1\t0.25\t0.01",
		"NA\tNA\t-0.5\t0.2\tNA\t1e-8",
	))
	var stderr bytes.Buffer
	exited := (&exportNumpy{}).RunCommand("export-numpy", []string{
		"-i", fnm,
		"-o", tmpdir + "/matrix.npy",
		"-output-labels", tmpdir + "/labels.csv",
	}, nil, &bytes.Buffer{}, &stderr)
	c.Assert(exited, check.Equals, 0, check.Commentf("stderr: %s", stderr.String()))

	f, err := os.Open(tmpdir + "/matrix.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{2, 4})
	data, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Assert(data, check.HasLen, 8)
	c.Check(data[:6], check.DeepEquals, []float64{0.5, 0.1, 0.25, 0.01, -0.5, 0.2})
	c.Check(math.IsNaN(data[6]), check.Equals, true)
	c.Check(data[7], check.Equals, 1e-8)

	labels, err := ioutil.ReadFile(tmpdir + "/labels.csv")
	c.Assert(err, check.IsNil)
	c.Check(string(labels), check.Equals, "0,\"1_100_A_G\",\"rs1\"\n1,\"NA\",\"NA\"\n")
}

func (s *exportNumpySuite) TestMissingColumn(c *check.C) {
	tmpdir := c.MkDir()
	fnm := writeFile(c, tmpdir+"/harmonized.tsv", tsv(
		"rsid\teffect_size\tpvalue",
		"rs1\t0.5\t0.01",
	))
	var stderr bytes.Buffer
	exited := (&exportNumpy{}).RunCommand("export-numpy", []string{"-i", fnm, "-o", tmpdir + "/matrix.npy"}, nil, &bytes.Buffer{}, &stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `missing required column.*standard_error.*EAF.*\n`)
}
