// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package seqresolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/biogo/hts/fai"
)

// ErrResourceExhausted is returned (possibly wrapped) by a Fetcher
// when the lookup could not run because the host is short of memory
// or processes. The pool retries such chunks.
var ErrResourceExhausted = errors.New("resource exhausted")

// IsResourceExhausted reports whether err indicates a transient
// out-of-memory condition starting the lookup tool.
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.EAGAIN)
}

// A Fetcher retrieves reference bases for a batch of regions of the
// form "chrom:start-end" (1-based, inclusive). The output is in
// "samtools faidx" format: for each region, in the order given, a
// ">region" header line followed by the sequence.
type Fetcher interface {
	Fetch(ctx context.Context, regions []string) ([]byte, error)
}

// Samtools runs "samtools faidx" once per batch.
type Samtools struct {
	// Path to the samtools executable.
	Path string
	// Reference FASTA file. It must have a .fai index.
	FastaRef string
	// If non-empty and a docker image by this name exists, run
	// samtools inside it.
	DockerImage string

	dockerOnce sync.Once
	useDocker  bool

	indexOnce sync.Once
	index     fai.Index
	indexErr  error
}

// loadIndex reads the sequence names and lengths from the reference
// index.
func (s *Samtools) loadIndex() (fai.Index, error) {
	s.indexOnce.Do(func() {
		f, err := os.Open(s.FastaRef + ".fai")
		if err != nil {
			s.indexErr = err
			return
		}
		defer f.Close()
		s.index, err = fai.ReadFrom(f)
		if err != nil {
			s.indexErr = fmt.Errorf("%s.fai: %w", s.FastaRef, err)
		}
	})
	return s.index, s.indexErr
}

func (s *Samtools) command(ctx context.Context, regions []string) *exec.Cmd {
	s.dockerOnce.Do(func() {
		if s.DockerImage == "" {
			return
		}
		out, err := exec.Command("docker", "image", "ls", "-q", s.DockerImage).Output()
		s.useDocker = err == nil && len(out) > 0
	})
	args := append([]string{s.Path, "faidx", s.FastaRef}, regions...)
	if s.useDocker {
		args = append([]string{
			"docker", "run", "--rm",
			"--log-driver=none",
			"--volume=" + s.FastaRef + ":" + s.FastaRef + ":ro",
			"--volume=" + s.FastaRef + ".fai:" + s.FastaRef + ".fai:ro",
			s.DockerImage,
		}, args...)
	}
	return exec.CommandContext(ctx, args[0], args[1:]...)
}

// Fetch implements Fetcher. Regions on sequences that are not in the
// reference index are not passed to samtools, and produce a header
// with no bases.
func (s *Samtools) Fetch(ctx context.Context, regions []string) ([]byte, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	known := make([]string, 0, len(regions))
	for _, region := range regions {
		name, _, _, err := parseRegion(region)
		if err != nil {
			return nil, err
		}
		if _, ok := idx[name]; ok {
			known = append(known, region)
		}
	}
	var out []byte
	if len(known) > 0 {
		out, err = s.run(ctx, known)
		if err != nil {
			return nil, err
		}
	}
	if len(known) == len(regions) {
		return out, nil
	}
	records, err := splitRecords(out, len(known))
	if err != nil {
		return nil, fmt.Errorf("%s faidx: %w", s.Path, err)
	}
	var buf bytes.Buffer
	for _, region := range regions {
		if len(known) > 0 && known[0] == region {
			buf.Write(records[0])
			if !bytes.HasSuffix(records[0], []byte{'\n'}) {
				buf.WriteByte('\n')
			}
			known, records = known[1:], records[1:]
		} else {
			fmt.Fprintf(&buf, ">%s\n", region)
		}
	}
	return buf.Bytes(), nil
}

func (s *Samtools) run(ctx context.Context, regions []string) ([]byte, error) {
	cmd := s.command(ctx, regions)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if strings.Contains(stderr.String(), "annot allocate memory") {
			err = fmt.Errorf("%w: %s", ErrResourceExhausted, err)
		}
		return nil, fmt.Errorf("%s faidx (%d regions): %w: %s", s.Path, len(regions), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// splitRecords splits faidx output into n records, each starting with
// its header line.
func splitRecords(out []byte, n int) ([][]byte, error) {
	records := make([][]byte, 0, n)
	for len(out) > 0 {
		if out[0] != '>' {
			return nil, errors.New("sequence data before first header")
		}
		next := bytes.Index(out, []byte("\n>"))
		if next < 0 {
			next = len(out)
		} else {
			next++
		}
		records = append(records, out[:next])
		out = out[next:]
	}
	if len(records) != n {
		return nil, fmt.Errorf("got %d sequences, expected %d", len(records), n)
	}
	return records, nil
}

// checkExecutable returns an error if path cannot be run.
func checkExecutable(path string) error {
	if strings.Contains(path, "/") {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if fi.Mode()&0111 == 0 {
			return fmt.Errorf("%s: not executable", path)
		}
		return nil
	}
	_, err := exec.LookPath(path)
	return err
}

// Check verifies that samtools and the reference index are present.
func (s *Samtools) Check() error {
	if err := checkExecutable(s.Path); err != nil {
		return fmt.Errorf("samtools: %w", err)
	}
	for _, fnm := range []string{s.FastaRef, s.FastaRef + ".fai"} {
		if _, err := os.Stat(fnm); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}
	return nil
}
