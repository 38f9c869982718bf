// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/arvados/harmonize/vtable"
	"github.com/mitchellh/mapstructure"
)

// Legend describes how to read one trait's raw summary statistics
// file. Column-name fields hold the raw file's name for each
// canonical column, or "NA" if the file has no such column.
type Legend struct {
	TraitName     string `mapstructure:"trait_name"`
	RSID          string `mapstructure:"rsid"`
	Chr           string `mapstructure:"chr"`
	Pos           string `mapstructure:"pos"`
	Ref           string `mapstructure:"ref"`
	Alt           string `mapstructure:"alt"`
	EffectSize    string `mapstructure:"effect_size"`
	EffectIsOR    string `mapstructure:"effect_is_OR"`
	StandardError string `mapstructure:"standard_error"`
	EAF           string `mapstructure:"EAF"`
	Pvalue        string `mapstructure:"pvalue"`
	PvalueHet     string `mapstructure:"pvalue_het"`
	NTotalColumn  string `mapstructure:"N_total_column"`
	NCaseColumn   string `mapstructure:"N_case_column"`
	NCtrlColumn   string `mapstructure:"N_ctrl_column"`
	ColumnDelim   string `mapstructure:"column_delim"`
	HgVersion     string `mapstructure:"hg_version"`
	FilePath      string `mapstructure:"file_path"`
	NTotal        string `mapstructure:"N_total"`
	NCase         string `mapstructure:"N_case"`
	NCtrl         string `mapstructure:"N_ctrl"`
}

var legendRequired = []string{
	"rsid", "chr", "pos", "ref", "alt",
	"effect_size", "effect_is_OR", "standard_error", "EAF",
	"pvalue", "pvalue_het",
	"N_total_column", "N_case_column", "N_ctrl_column",
	"column_delim", "hg_version", "file_path",
	"N_total", "N_case", "N_ctrl",
}

var legendNotNA = []string{"chr", "pos", "ref", "alt"}

// columnMap returns raw column name => canonical column name for the
// columns the legend names.
func (l *Legend) columnMap() map[string]string {
	m := map[string]string{}
	for canonical, raw := range map[string]string{
		"rsid":           l.RSID,
		"chr":            l.Chr,
		"pos":            l.Pos,
		"ref":            l.Ref,
		"alt":            l.Alt,
		"effect_size":    l.EffectSize,
		"standard_error": l.StandardError,
		"EAF":            l.EAF,
		"pvalue":         l.Pvalue,
		"pvalue_het":     l.PvalueHet,
		"N_total_column": l.NTotalColumn,
		"N_case_column":  l.NCaseColumn,
		"N_ctrl_column":  l.NCtrlColumn,
	} {
		if !vtable.IsMissing(raw) {
			m[raw] = canonical
		}
	}
	return m
}

// selectLegend finds the single row of sheet whose trait_name is
// trait, checks it, and decodes it.
func selectLegend(sheet *vtable.Table, trait string) (*Legend, error) {
	traitIdx, ok := sheet.Idx("trait_name")
	if !ok {
		return nil, errors.New("legend has no trait_name column")
	}
	var found []string
	for _, row := range sheet.Rows {
		if row[traitIdx] == trait {
			if found != nil {
				return nil, fmt.Errorf("multiple rows found in legend for trait_name=%s", trait)
			}
			found = row
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no rows found in legend for trait_name=%s", trait)
	}
	fields := map[string]string{}
	for i, h := range sheet.Header {
		fields[h] = found[i]
	}
	for _, col := range legendRequired {
		if fields[col] == "" {
			return nil, fmt.Errorf("column %s is missing in legend for trait_name=%s", col, trait)
		}
	}
	for _, col := range legendNotNA {
		if v := fields[col]; v == "NA" || v == "NaN" {
			return nil, fmt.Errorf("column %s is NA in legend for trait_name=%s", col, trait)
		}
	}
	var legend Legend
	err := mapstructure.Decode(fields, &legend)
	if err != nil {
		return nil, fmt.Errorf("legend: %w", err)
	}
	return &legend, nil
}

// sheetsAPIBase is the Google Sheets v4 endpoint. Tests point it at
// a local server.
var sheetsAPIBase = "https://sheets.googleapis.com/v4/spreadsheets/"

type sheetsClient struct {
	Client *http.Client
	APIKey string
}

func (sc *sheetsClient) getJSON(ctx context.Context, path string) (*gabs.Container, error) {
	u := sheetsAPIBase + path + "?" + url.Values{"key": {sc.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	client := sc.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google sheets API: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return gabs.ParseJSON(body)
}

// FetchSheet retrieves the first sheet of the given spreadsheet as a
// table. The first row is the header. Rows shorter than the header
// (the API omits trailing empty cells) are padded with empty strings.
func (sc *sheetsClient) FetchSheet(ctx context.Context, sheetID string) (*vtable.Table, error) {
	if strings.HasPrefix(sheetID, "http") {
		return nil, errors.New("google sheets ID should be the ID of the document, not the URL: e.g., if the URL is https://docs.google.com/spreadsheets/d/1a2b3c/edit#gid=0, the ID is 1a2b3c")
	}
	meta, err := sc.getJSON(ctx, url.PathEscape(sheetID))
	if err != nil {
		return nil, err
	}
	title, ok := meta.Path("sheets").Index(0).Path("properties.title").Data().(string)
	if !ok {
		return nil, errors.New("google sheets API: spreadsheet has no sheets")
	}
	values, err := sc.getJSON(ctx, url.PathEscape(sheetID)+"/values/"+url.PathEscape(title))
	if err != nil {
		return nil, err
	}
	rows, err := values.Path("values").Children()
	if err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("google sheets API: sheet %q has no values", title)
	}
	strs := func(row *gabs.Container) ([]string, error) {
		cells, err := row.Children()
		if err != nil {
			return nil, err
		}
		out := make([]string, len(cells))
		for i, cell := range cells {
			s, isString := cell.Data().(string)
			if !isString {
				return nil, fmt.Errorf("cell %d is not a string", i)
			}
			out[i] = s
		}
		return out, nil
	}
	header, err := strs(rows[0])
	if err != nil {
		return nil, fmt.Errorf("google sheets API: header: %w", err)
	}
	t := &vtable.Table{Header: header}
	for i, row := range rows[1:] {
		cells, err := strs(row)
		if err != nil {
			return nil, fmt.Errorf("google sheets API: row %d: %w", i+2, err)
		}
		if len(cells) > len(header) {
			return nil, fmt.Errorf("google sheets API: row %d has %d cells, header has %d", i+2, len(cells), len(header))
		}
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, t.Check()
}

// loadLegendFile reads a local tab-separated legend.
func loadLegendFile(fnm string) (*vtable.Table, error) {
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := vtable.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return t, t.Check()
}
