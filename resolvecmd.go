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

	"github.com/arvados/harmonize/seqresolve"
	log "github.com/sirupsen/logrus"
)

// resolverFlags configure sequence resolution, for the harmonize and
// resolve subcommands.
type resolverFlags struct {
	samtools   string
	fastaRef   string
	backend    string
	image      string
	prefix     string
	chunkSize  int
	threads    int
	maxRetries int
}

func (rf *resolverFlags) register(flags *flag.FlagSet, env envDefaults) {
	flags.StringVar(&rf.samtools, "samtools", env.Samtools, "samtools `executable`")
	flags.StringVar(&rf.fastaRef, "fasta-ref", "", "hg38 reference fasta `file` (with .fai index)")
	flags.StringVar(&rf.backend, "fasta-backend", "samtools", "sequence lookup `method`: samtools or fai")
	flags.StringVar(&rf.prefix, "region-prefix", "chr", "`prefix` added to chromosome names in sequence lookups")
	flags.IntVar(&rf.chunkSize, "chunk-size", env.ChunkSize, "`positions` per sequence lookup")
	flags.IntVar(&rf.threads, "threads", env.Threads, "concurrent sequence lookups (default: number of CPUs)")
	flags.IntVar(&rf.maxRetries, "max-retries", env.MaxRetries, "retries per chunk after out-of-memory errors (0: none)")
	rf.image = env.RuntimeImage
}

// resolver returns a Resolver using the configured backend, and a
// func that releases its resources.
func (rf *resolverFlags) resolver(logger log.FieldLogger) (*seqresolve.Resolver, func() error, error) {
	if rf.fastaRef == "" {
		return nil, nil, fmt.Errorf("-fasta-ref is required")
	}
	var fetcher seqresolve.Fetcher
	cleanup := func() error { return nil }
	switch rf.backend {
	case "samtools":
		st := &seqresolve.Samtools{Path: rf.samtools, FastaRef: rf.fastaRef, DockerImage: rf.image}
		if err := st.Check(); err != nil {
			return nil, nil, err
		}
		fetcher = st
	case "fai":
		ff, err := seqresolve.OpenFai(rf.fastaRef)
		if err != nil {
			return nil, nil, err
		}
		fetcher, cleanup = ff, ff.Close
	default:
		return nil, nil, fmt.Errorf("unknown -fasta-backend %q", rf.backend)
	}
	return &seqresolve.Resolver{
		Pool: &seqresolve.Pool{
			Fetcher:    fetcher,
			Workers:    rf.threads,
			ChunkSize:  rf.chunkSize,
			MaxRetries: rf.maxRetries,
			Logger:     logger,
		},
		RegionPrefix: rf.prefix,
		Logger:       logger,
	}, cleanup, nil
}

type resolvecmd struct{}

func (cmd *resolvecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	inputFilename := flags.String("i", "-", "residual table `file` (tsv or tsv.gz)")
	outputFilename := flags.String("o", "-", "output `file`")
	var rf resolverFlags
	rf.register(flags, env)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("unexpected arguments: %q", flags.Args())
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

	resolver, cleanup, err := rf.resolver(log.StandardLogger())
	if err != nil {
		return 1
	}
	defer cleanup()
	residual, err := readTable(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	resolved, _, err := resolver.Resolve(context.Background(), residual)
	if err != nil {
		return 1
	}
	err = writeTable(*outputFilename, resolved, stdout)
	if err != nil {
		return 1
	}
	return 0
}
