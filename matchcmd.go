// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package harmonize

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	"github.com/arvados/harmonize/catalogue"
	"github.com/arvados/harmonize/match"
	log "github.com/sirupsen/logrus"
)

func loadCatalogue(fnm string) (*catalogue.Catalogue, error) {
	log.Infof("loading catalogue %s", fnm)
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cat, err := catalogue.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	log.Infof("loaded %d catalogue entries", cat.Len())
	return cat, nil
}

type matchcmd struct{}

func (cmd *matchcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	env, err := loadEnvDefaults()
	if err != nil {
		return 1
	}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	inputFilename := flags.String("i", "-", "lifted table `file` (tsv or tsv.gz)")
	dbsnp := flags.String("dbsnp", "", "reference catalogue `file` (tsv or tsv.gz)")
	outputFilename := flags.String("o", "-", "matched rows output `file`")
	residualFilename := flags.String("residual", "", "if non-empty, write unmatched rows to `file`")
	threads := flags.Int("threads", env.Threads, "concurrent lookups (default: number of CPUs)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *dbsnp == "" {
		err = fmt.Errorf("-dbsnp is required")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	cat, err := loadCatalogue(*dbsnp)
	if err != nil {
		return 1
	}
	in, err := readTable(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	matcher := &match.Matcher{Catalogue: cat, Parallel: *threads}
	res, err := matcher.Match(context.Background(), in)
	if err != nil {
		return 1
	}
	err = writeTable(*outputFilename, res.Matched, stdout)
	if err != nil {
		return 1
	}
	if *residualFilename != "" {
		err = writeTable(*residualFilename, res.Residual, stdout)
		if err != nil {
			return 1
		}
	}
	return 0
}
