// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/arvados/harmonize/vtable"
	"gopkg.in/check.v1"
)

type legendSuite struct{}

var _ = check.Suite(&legendSuite{})

func testLegendTable(c *check.C) *vtable.Table {
	t, err := vtable.ReadTSV(strings.NewReader(testLegendTSV))
	c.Assert(err, check.IsNil)
	return t
}

func (s *legendSuite) TestSelect(c *check.C) {
	legend, err := selectLegend(testLegendTable(c), "asthma")
	c.Assert(err, check.IsNil)
	c.Check(legend.TraitName, check.Equals, "asthma")
	c.Check(legend.EffectSize, check.Equals, "OR")
	c.Check(legend.EffectIsOR, check.Equals, "Y")
	c.Check(legend.ColumnDelim, check.Equals, "comma")
	c.Check(legend.HgVersion, check.Equals, "hg38")
	c.Check(legend.NTotal, check.Equals, "NA")
	c.Check(legend.NCase, check.Equals, "400")
	c.Check(legend.columnMap(), check.DeepEquals, map[string]string{
		"SNP":  "rsid",
		"CHR":  "chr",
		"BP":   "pos",
		"A1":   "ref",
		"A2":   "alt",
		"OR":   "effect_size",
		"SE":   "standard_error",
		"FREQ": "EAF",
		"P":    "pvalue",
	})
}

func (s *legendSuite) TestSelectErrors(c *check.C) {
	t := testLegendTable(c)
	_, err := selectLegend(t, "weight")
	c.Check(err, check.ErrorMatches, `no rows found in legend for trait_name=weight`)

	t = testLegendTable(c)
	t.Rows = append(t.Rows, append([]string(nil), t.Rows[0]...))
	_, err = selectLegend(t, "height")
	c.Check(err, check.ErrorMatches, `multiple rows found in legend for trait_name=height`)

	t = testLegendTable(c)
	t.Rows[0][t.AddColumn("pos", "")] = "NA"
	_, err = selectLegend(t, "height")
	c.Check(err, check.ErrorMatches, `column pos is NA in legend for trait_name=height`)

	t = testLegendTable(c)
	t.Rows[0][t.AddColumn("file_path", "")] = ""
	_, err = selectLegend(t, "height")
	c.Check(err, check.ErrorMatches, `column file_path is missing in legend for trait_name=height`)

	t = testLegendTable(c)
	c.Assert(t.Rename("hg_version", "build"), check.IsNil)
	_, err = selectLegend(t, "height")
	c.Check(err, check.ErrorMatches, `column hg_version is missing in legend for trait_name=height`)
}

func (s *legendSuite) TestFetchSheet(c *check.C) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests = append(requests, req.URL.Path)
		if req.URL.Query().Get("key") != "testkey" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			return
		}
		switch req.URL.Path {
		case "/doc1":
			fmt.Fprint(w, `{"spreadsheetId":"doc1","sheets":[{"properties":{"title":"Legend 2022"}},{"properties":{"title":"Old"}}]}`)
		case "/doc1/values/Legend 2022":
			fmt.Fprint(w, `{"range":"Legend 2022!A1:D3","values":[["trait_name","rsid","chr","pos"],["height","SNP","CHR","BP"],["asthma","SNP"]]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	defer func(orig string) { sheetsAPIBase = orig }(sheetsAPIBase)
	sheetsAPIBase = srv.URL + "/"

	sc := &sheetsClient{Client: srv.Client(), APIKey: "testkey"}
	t, err := sc.FetchSheet(context.Background(), "doc1")
	c.Assert(err, check.IsNil)
	c.Check(requests, check.DeepEquals, []string{"/doc1", "/doc1/values/Legend 2022"})
	c.Check(t.Header, check.DeepEquals, []string{"trait_name", "rsid", "chr", "pos"})
	c.Check(t.Rows, check.DeepEquals, [][]string{
		{"height", "SNP", "CHR", "BP"},
		{"asthma", "SNP", "", ""},
	})

	sc.APIKey = "wrongkey"
	_, err = sc.FetchSheet(context.Background(), "doc1")
	c.Check(err, check.ErrorMatches, `google sheets API: 403 Forbidden: .*bad key.*`)

	sc.APIKey = "testkey"
	_, err = sc.FetchSheet(context.Background(), "doc2")
	c.Check(err, check.ErrorMatches, `google sheets API: 404 Not Found: .*`)
}

func (s *legendSuite) TestFetchSheetURL(c *check.C) {
	sc := &sheetsClient{}
	_, err := sc.FetchSheet(context.Background(), "https://docs.google.com/spreadsheets/d/1a2b3c/edit#gid=0")
	c.Check(err, check.ErrorMatches, `google sheets ID should be the ID of the document, not the URL.*`)
}
