// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seqresolve

import (
	"bytes"
	"fmt"
)

// Unknown is the base recorded for a region whose sequence is
// missing, longer than one base, or otherwise unusable.
const Unknown = "N"

// parseBases returns one uppercase base per record in faidx output.
// Records start at ">" header lines; a record's sequence may span
// several lines. Output without any header lines is read as one
// record per non-blank line. It is an error if the number of records
// is not n.
func parseBases(out []byte, n int) ([]string, error) {
	var seqs [][]byte
	headers := bytes.HasPrefix(out, []byte(">")) || bytes.Contains(out, []byte("\n>"))
	for _, line := range bytes.Split(out, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		switch {
		case headers && len(line) > 0 && line[0] == '>':
			seqs = append(seqs, []byte{})
		case headers:
			if len(seqs) == 0 {
				if len(line) == 0 {
					continue
				}
				return nil, fmt.Errorf("sequence data before first header")
			}
			seqs[len(seqs)-1] = append(seqs[len(seqs)-1], line...)
		case len(line) > 0:
			seqs = append(seqs, line)
		}
	}
	if len(seqs) != n {
		return nil, fmt.Errorf("got %d sequences, expected %d", len(seqs), n)
	}
	bases := make([]string, n)
	for i, seq := range seqs {
		if len(seq) == 1 {
			bases[i] = string(bytes.ToUpper(seq))
		} else {
			bases[i] = Unknown
		}
	}
	return bases, nil
}
