// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"context"
	"io/ioutil"

	"github.com/arvados/harmonize/vtable"
	"gopkg.in/check.v1"
)

type liftoverSuite struct{}

var _ = check.Suite(&liftoverSuite{})

func liftoverInput(build string) *vtable.Table {
	return &vtable.Table{
		Header: []string{"rsid", "chr_" + build, "pos_" + build, "ref", "alt", "effect_size"},
		Rows: [][]string{
			{"rs1", "1", "100", "A", "G", "0.1"},
			{"rs2", "1", "200", "A", "G", "0.2"},
			{"rs3", "X", "300", "A", "G", "0.3"},
			{"rs4", "2", "NA", "A", "G", "0.4"},
		},
	}
}

func (s *liftoverSuite) TestFromHg19(c *check.C) {
	tmpdir := c.MkDir()
	lo := &liftOver{Exe: writeFakeLiftover(c, tmpdir, 10, 3), ChainDir: tmpdir}
	t, err := lo.Lift(context.Background(), liftoverInput("hg19"))
	c.Assert(err, check.IsNil)
	c.Check(t.Header, check.DeepEquals, liftedColumns)
	c.Check(column(c, t, "chr_hg19"), check.DeepEquals, []string{"1", "1", "X", "NA"})
	c.Check(column(c, t, "pos_hg19"), check.DeepEquals, []string{"100", "200", "300", "NA"})
	c.Check(column(c, t, "chr_hg38"), check.DeepEquals, []string{"1", "NA", "X", "NA"})
	c.Check(column(c, t, "pos_hg38"), check.DeepEquals, []string{"110", "NA", "310", "NA"})
	c.Check(column(c, t, "effect_size"), check.DeepEquals, []string{"0.1", "0.2", "0.3", "0.4"})
	c.Check(column(c, t, "N_total"), check.DeepEquals, []string{"NA", "NA", "NA", "NA"})
}

func (s *liftoverSuite) TestFromHg38(c *check.C) {
	tmpdir := c.MkDir()
	lo := &liftOver{Exe: writeFakeLiftover(c, tmpdir, -10, 4), ChainDir: tmpdir}
	t, err := lo.Lift(context.Background(), liftoverInput("hg38"))
	c.Assert(err, check.IsNil)
	c.Check(column(c, t, "pos_hg19"), check.DeepEquals, []string{"90", "190", "NA", "NA"})
	c.Check(column(c, t, "pos_hg38"), check.DeepEquals, []string{"100", "200", "300", "NA"})
}

// From hg18, coordinates are lifted to hg19 and then to hg38. A row
// lost in the first step is lost in both.
func (s *liftoverSuite) TestFromHg18(c *check.C) {
	tmpdir := c.MkDir()
	lo := &liftOver{Exe: writeFakeLiftover(c, tmpdir, 10, 2), ChainDir: tmpdir}
	t, err := lo.Lift(context.Background(), liftoverInput("hg18"))
	c.Assert(err, check.IsNil)
	c.Check(column(c, t, "chr_hg19"), check.DeepEquals, []string{"NA", "1", "X", "NA"})
	c.Check(column(c, t, "pos_hg19"), check.DeepEquals, []string{"NA", "210", "310", "NA"})
	c.Check(column(c, t, "pos_hg38"), check.DeepEquals, []string{"NA", "220", "320", "NA"})
}

func (s *liftoverSuite) TestNoPosition(c *check.C) {
	lo := &liftOver{Exe: "/bin/false", ChainDir: c.MkDir()}
	_, err := lo.Lift(context.Background(), liftoverInput("hg99"))
	c.Check(err, check.ErrorMatches, `no position column .*`)
}

func (s *liftoverSuite) TestFailure(c *check.C) {
	tmpdir := c.MkDir()
	exe := tmpdir + "/liftOver"
	err := ioutil.WriteFile(exe, []byte("#!/bin/sh\necho >&2 \"cannot open $2\"\nexit 1\n"), 0755)
	c.Assert(err, check.IsNil)
	lo := &liftOver{Exe: exe, ChainDir: tmpdir}
	_, err = lo.Lift(context.Background(), liftoverInput("hg19"))
	c.Check(err, check.ErrorMatches, `.*/liftOver hg19ToHg38: exit status 1: cannot open .*/hg19ToHg38.over.chain.gz`)
}
