// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vtable

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadDelimited reads a table with a header row from r. Fields are
// separated by delim and may be quoted. Every record must have the
// same number of fields as the header.
func ReadDelimited(r io.Reader, delim rune) (*Table, error) {
	rdr := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	rdr.Comma = delim
	rdr.ReuseRecord = false
	header, err := rdr.Read()
	if err == io.EOF {
		return nil, errors.New("empty input: no header row")
	} else if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	t := &Table{Header: header}
	for {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadTSV reads an unquoted tab-separated table with a header row.
// Blank lines are ignored; a row with the wrong number of fields is
// an error.
func ReadTSV(r io.Reader) (*Table, error) {
	var t *Table
	err := ScanTSV(r, func(header []string) error {
		t = &Table{Header: header}
		return nil
	}, func(row []string) error {
		t.Rows = append(t.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ScanTSV calls onHeader with the first line of r and onRow with each
// subsequent non-blank line, split on tabs. Rows whose field count
// differs from the header are reported with their line number.
func ScanTSV(r io.Reader, onHeader func([]string) error, onRow func([]string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 64<<20)
	lineno := 0
	ncols := -1
	for scanner.Scan() {
		lineno++
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(string(line), "\t")
		if ncols < 0 {
			ncols = len(fields)
			if err := onHeader(fields); err != nil {
				return err
			}
			continue
		}
		if len(fields) != ncols {
			return fmt.Errorf("line %d: wrong number of fields (%d != %d)", lineno, len(fields), ncols)
		}
		if err := onRow(fields); err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if ncols < 0 {
		return errors.New("empty input: no header row")
	}
	return nil
}

// WriteTSV writes the header line followed by one line per row, with
// fields joined by tabs.
func (t *Table) WriteTSV(w io.Writer) error {
	bufw := bufio.NewWriterSize(w, 1<<20)
	if _, err := fmt.Fprintln(bufw, strings.Join(t.Header, "\t")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(bufw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return bufw.Flush()
}
