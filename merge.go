// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"github.com/arvados/harmonize/vtable"
)

// OutputColumns is the column order of the harmonized output.
var OutputColumns = []string{
	"rsid", "unique_id",
	"chr_hg19", "pos_hg19", "ref", "alt",
	"effect_size", "standard_error", "EAF", "pvalue", "pvalue_het",
	"N_total", "N_case", "N_ctrl",
	"chr_hg38", "pos_hg38",
	"gnomAD_AF_EUR", "gnomAD_AF_AMR", "gnomAD_AF_AFR", "gnomAD_AF_EAS", "gnomAD_AF_SAS",
}

// mergeResults returns the catalogue-matched rows followed by the
// sequence-resolved rows, both projected to OutputColumns. Columns a
// table lacks (e.g., catalogue annotations for resolved rows) are NA.
// Both inputs are consumed.
func mergeResults(matched, resolved *vtable.Table) *vtable.Table {
	out := matched.Project(OutputColumns, vtable.NA)
	if resolved != nil {
		out.Rows = append(out.Rows, resolved.Project(OutputColumns, vtable.NA).Rows...)
	}
	return out
}
