// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arvados/harmonize/vtable"
	"github.com/klauspost/pgzip"
)

// readTable reads a tab-separated table, decompressing if fnm ends
// in ".gz". "-" means stdin.
func readTable(fnm string, stdin io.Reader) (*vtable.Table, error) {
	var rdr io.Reader
	if fnm == "-" {
		rdr = bufio.NewReaderSize(stdin, 1<<20)
	} else {
		f, err := zopen(fnm)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rdr = f
	}
	t, err := vtable.ReadTSV(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return t, nil
}

// writeTable writes t as tab-separated text to fnm, gzip-compressed
// if fnm ends in ".gz". "-" means stdout, uncompressed.
func writeTable(fnm string, t *vtable.Table, stdout io.Writer) error {
	var output io.WriteCloser
	if fnm == "-" {
		output = nopCloser{stdout}
	} else {
		f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return err
		}
		output = f
	}
	var w io.Writer = output
	var gzw *pgzip.Writer
	if strings.HasSuffix(fnm, ".gz") {
		gzw = pgzip.NewWriter(output)
		w = gzw
	}
	err := t.WriteTSV(w)
	if err == nil && gzw != nil {
		err = gzw.Close()
	}
	if err != nil {
		output.Close()
		return fmt.Errorf("writing %s: %w", fnm, err)
	}
	return output.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
