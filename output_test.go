// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bytes"
	"io/ioutil"
	"os"
	"strings"

	"github.com/arvados/harmonize/vtable"
	"gopkg.in/check.v1"
)

type outputSuite struct{}

var _ = check.Suite(&outputSuite{})

func (s *outputSuite) TestMerge(c *check.C) {
	matched := &vtable.Table{
		Header: []string{"chr_hg19", "pos_hg19", "ref", "alt", "effect_size", "pos_hg38", "rsid", "gnomAD_AF_EUR", "dbsnp_build", "unique_id"},
		Rows: [][]string{
			{"1", "100", "A", "G", "0.1", "110", "rs1", "0.5", "155", "1_100_A_G"},
		},
	}
	resolved := &vtable.Table{
		Header: []string{"chr_hg19", "pos_hg19", "ref", "alt", "effect_size", "chr_hg38", "pos_hg38"},
		Rows: [][]string{
			{"2", "200", "C", "T", "0.2", "2", "210"},
		},
	}
	out := mergeResults(matched, resolved)
	c.Check(out.Header, check.DeepEquals, OutputColumns)
	c.Assert(out.Rows, check.HasLen, 2)
	c.Check(out.Rows[0][:8], check.DeepEquals, []string{"rs1", "1_100_A_G", "1", "100", "A", "G", "0.1", "NA"})
	c.Check(out.Rows[1][:8], check.DeepEquals, []string{"NA", "NA", "2", "200", "C", "T", "0.2", "NA"})
	c.Check(column(c, out, "gnomAD_AF_EUR"), check.DeepEquals, []string{"0.5", "NA"})
	c.Check(column(c, out, "chr_hg38"), check.DeepEquals, []string{"NA", "2"})
	c.Check(matched.Rows, check.IsNil)
	c.Check(resolved.Rows, check.IsNil)

	out = mergeResults(&vtable.Table{Header: matched.Header}, nil)
	c.Check(out.Header, check.DeepEquals, OutputColumns)
	c.Check(out.Rows, check.HasLen, 0)
}

func (s *outputSuite) TestWriteRead(c *check.C) {
	tmpdir := c.MkDir()
	in := func() *vtable.Table {
		return &vtable.Table{
			Header: []string{"rsid", "pvalue"},
			Rows:   [][]string{{"rs1", "0.01"}, {"NA", "1e-8"}},
		}
	}
	for _, fnm := range []string{tmpdir + "/out.tsv", tmpdir + "/out.tsv.gz"} {
		c.Assert(writeTable(fnm, in(), nil), check.IsNil)
		buf, err := ioutil.ReadFile(fnm)
		c.Assert(err, check.IsNil)
		gzipped := bytes.HasPrefix(buf, []byte{0x1f, 0x8b})
		c.Check(gzipped, check.Equals, strings.HasSuffix(fnm, ".gz"))
		got, err := readTable(fnm, nil)
		c.Assert(err, check.IsNil)
		c.Check(got, check.DeepEquals, in())
	}

	var stdout bytes.Buffer
	c.Assert(writeTable("-", in(), &stdout), check.IsNil)
	c.Check(stdout.String(), check.Equals, "rsid\tpvalue\nrs1\t0.01\nNA\t1e-8\n")
	got, err := readTable("-", &stdout)
	c.Assert(err, check.IsNil)
	c.Check(got, check.DeepEquals, in())
}

func (s *outputSuite) TestWriteErrors(c *check.C) {
	t := &vtable.Table{Header: []string{"rsid"}, Rows: [][]string{{"rs1"}}}
	err := writeTable(c.MkDir()+"/nonexistent/out.tsv", t, nil)
	c.Check(err, check.ErrorMatches, `.*no such file or directory`)

	if _, err := os.Stat("/dev/full"); err != nil {
		c.Skip("no /dev/full")
	}
	err = writeTable("/dev/full", t, nil)
	c.Check(err, check.ErrorMatches, `writing /dev/full: .*no space left on device`)
}

func (s *outputSuite) TestReadTableErrors(c *check.C) {
	_, err := readTable("-", strings.NewReader("a\tb\n1\t2\t3\n"))
	c.Check(err, check.ErrorMatches, `-: .*`)
	_, err = readTable("-", strings.NewReader("a\ta\n1\t2\n"))
	c.Check(err, check.ErrorMatches, `-: .*`)
	_, err = readTable(c.MkDir()+"/nonexistent.tsv", nil)
	c.Check(err, check.NotNil)
}
