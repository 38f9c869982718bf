// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package harmonize converts GWAS summary statistics into a uniform
// table: canonical columns, hg19 and hg38 coordinates, and alleles
// oriented to match a reference variant catalogue or, failing that,
// the hg38 reference genome.
package harmonize

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"path/filepath"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"github.com/arvados/harmonize/catalogue"
	"github.com/arvados/harmonize/match"
	"github.com/arvados/harmonize/vtable"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type harmonizer struct {
	sheetsID    string
	legendFile  string
	trait       string
	rawInputDir string
	liftover    string
	liftoverDir string
	dbsnp       string
	outputFile  string
	sheetsKey   string
	resolverFlags
}

func (cmd *harmonizer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.sheetsID, "google-sheets-id", "", "legend Google Sheets document `ID`")
	flags.StringVar(&cmd.legendFile, "legend", "", "legend tsv `file` (alternative to -google-sheets-id)")
	flags.StringVar(&cmd.trait, "trait", "", "trait_name to harmonize")
	flags.StringVar(&cmd.rawInputDir, "raw-input-dir", "", "`directory` containing raw summary statistics files")
	flags.StringVar(&cmd.liftover, "liftover", env.Liftover, "liftOver `executable`")
	flags.StringVar(&cmd.liftoverDir, "liftover-dir", "", "`directory` containing liftOver chain files")
	flags.StringVar(&cmd.dbsnp, "dbsnp", "", "reference catalogue `file` (tsv or tsv.gz)")
	flags.StringVar(&cmd.outputFile, "o", "-", "output `file` (gzip-compressed if name ends in .gz)")
	cmd.resolverFlags.register(flags, env)
	runlocal := flags.Bool("local", false, "run on local host (default: run in an arvados container)")
	projectUUID := flags.String("project", "", "project `UUID` for output data")
	priority := flags.Int("priority", 500, "container request priority")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("unexpected arguments: %q", flags.Args())
		return 2
	} else if (cmd.sheetsID == "") == (cmd.legendFile == "") {
		err = errors.New("exactly one of -google-sheets-id and -legend is required")
		return 2
	} else if cmd.trait == "" || cmd.rawInputDir == "" || cmd.liftoverDir == "" || cmd.dbsnp == "" {
		err = errors.New("-trait, -raw-input-dir, -liftover-dir, and -dbsnp are required")
		return 2
	}
	cmd.sheetsKey = env.SheetsAPIKey

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

	if !*runlocal {
		if cmd.outputFile != "-" {
			err = errors.New("cannot specify output file in container mode: not implemented")
			return 1
		}
		runner := arvadosContainerRunner{
			Name:        "harmonize " + cmd.trait,
			Client:      arvados.NewClientFromEnv(),
			ProjectUUID: *projectUUID,
			Image:       env.RuntimeImage,
			RAM:         64000000000,
			VCPUs:       16,
			Priority:    *priority,
			Preemptible: true,
		}
		err = runner.TranslatePaths(&cmd.legendFile, &cmd.rawInputDir, &cmd.liftoverDir, &cmd.dbsnp, &cmd.fastaRef)
		if err != nil {
			return 1
		}
		runner.Args = []string{"harmonize",
			"-local=true",
			"-loglevel=" + *loglevel,
			"-trait", cmd.trait,
			"-raw-input-dir", cmd.rawInputDir,
			"-liftover", "liftOver",
			"-liftover-dir", cmd.liftoverDir,
			"-dbsnp", cmd.dbsnp,
			"-samtools", "samtools",
			"-fasta-ref", cmd.fastaRef,
			"-fasta-backend", cmd.backend,
			"-region-prefix", cmd.prefix,
			fmt.Sprintf("-chunk-size=%d", cmd.chunkSize),
			fmt.Sprintf("-max-retries=%d", cmd.maxRetries),
			"-o", "/mnt/output/harmonized.tsv.gz",
		}
		if cmd.sheetsID != "" {
			runner.Args = append(runner.Args, "-google-sheets-id", cmd.sheetsID)
		} else {
			runner.Args = append(runner.Args, "-legend", cmd.legendFile)
		}
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/harmonized.tsv.gz")
		return 0
	}

	err = cmd.run(context.Background(), stdout)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *harmonizer) loadLegend(ctx context.Context) (*Legend, error) {
	var sheet *vtable.Table
	var err error
	if cmd.sheetsID != "" {
		sc := &sheetsClient{APIKey: cmd.sheetsKey}
		sheet, err = sc.FetchSheet(ctx, cmd.sheetsID)
	} else {
		sheet, err = loadLegendFile(cmd.legendFile)
	}
	if err != nil {
		return nil, fmt.Errorf("legend: %w", err)
	}
	return selectLegend(sheet, cmd.trait)
}

func (cmd *harmonizer) run(ctx context.Context, stdout io.Writer) error {
	logger := log.WithField("run", uuid.New().String())
	logger.WithField("trait", cmd.trait).Info("starting pipeline")

	legend, err := cmd.loadLegend(ctx)
	if err != nil {
		return err
	}
	resolver, cleanup, err := cmd.resolverFlags.resolver(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Load the catalogue while the input is preformatted and
	// lifted.
	var cat *catalogue.Catalogue
	var lifted *vtable.Table
	thr := throttle{Max: 2}
	thr.Go(func() (err error) {
		cat, err = loadCatalogue(cmd.dbsnp)
		return
	})
	thr.Go(func() error {
		logger.Info("starting preformat")
		t, err := preformat(legend, cmd.rawInputDir)
		if err != nil {
			return err
		}
		logger.Info("starting liftover")
		lo := &liftOver{Exe: cmd.liftover, ChainDir: cmd.liftoverDir}
		lifted, err = lo.Lift(ctx, t)
		return err
	})
	if err := thr.Wait(); err != nil {
		return err
	}

	logger.Info("starting catalogue matching")
	matcher := &match.Matcher{Catalogue: cat, Parallel: cmd.threads, Logger: logger}
	res, err := matcher.Match(ctx, lifted)
	if err != nil {
		return err
	}
	logger.Info("starting reference allele check")
	resolved, _, err := resolver.Resolve(ctx, res.Residual)
	if err != nil {
		return err
	}
	final := mergeResults(res.Matched, resolved)
	logger.WithField("rows", len(final.Rows)).Infof("writing %s", filepath.Base(cmd.outputFile))
	err = writeTable(cmd.outputFile, final, stdout)
	if err != nil {
		return err
	}
	logger.Info("pipeline complete")
	return nil
}
