package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/customermatch/internal/config"
	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/csvio"
	"github.com/JonMunkholm/customermatch/internal/geo"
)

type normalizeOptions struct {
	output       string
	hash         bool
	formatOnly   bool
	inferZip     bool
	region       string
	translations string
	zipBackend   string
	seed         uint64
	assumeYes    bool
	noPrompt     bool
}

func newNormalizeCmd(a *app) *cobra.Command {
	var opts normalizeOptions

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Normalize a contact CSV (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd, a.cfg); err != nil {
				return err
			}
			return runNormalize(cmd, a, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&opts.hash, "hash", false, "Replace values with SHA-256 digests")
	f.BoolVar(&opts.formatOnly, "format-only", false, "Write normalized values without hashing")
	f.BoolVar(&opts.inferZip, "infer-zip", false, "Fill missing zips from city and state")
	f.StringVar(&opts.region, "region", "", "Default phone region (ISO2)")
	f.StringVar(&opts.translations, "translations", "", "YAML file of extra header spellings")
	f.StringVar(&opts.zipBackend, "zip-backend", "", "Zip source: none, csv, sqlite, postgres, redis")
	f.Uint64Var(&opts.seed, "seed", 0, "Fixed seed for picking among several zips (0: random)")
	f.BoolVarP(&opts.assumeYes, "yes", "y", false, "Answer yes to prompts")
	f.BoolVar(&opts.noPrompt, "no-prompt", false, "Never prompt; keep zips empty when the column is missing")
	cmd.MarkFlagsMutuallyExclusive("hash", "format-only")
	cmd.MarkFlagsMutuallyExclusive("yes", "no-prompt")

	return cmd
}

// apply overlays explicitly set flags on the loaded configuration.
func (o normalizeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("hash") {
		cfg.Normalize.HashEnabled = o.hash
		if o.hash {
			cfg.Normalize.FormatOnly = false
		}
	}
	if f.Changed("format-only") {
		cfg.Normalize.FormatOnly = o.formatOnly
		if o.formatOnly {
			cfg.Normalize.HashEnabled = false
		}
	}
	if f.Changed("infer-zip") {
		cfg.Normalize.InferZip = o.inferZip
	}
	if f.Changed("region") {
		cfg.Normalize.DefaultRegion = strings.ToUpper(strings.TrimSpace(o.region))
	}
	if f.Changed("translations") {
		cfg.Normalize.TranslationsFile = o.translations
	}
	if f.Changed("zip-backend") {
		cfg.Lookup.Backend = o.zipBackend
	}
	if f.Changed("seed") {
		cfg.Lookup.Seed = o.seed
	}
	return cfg.Validate()
}

func runNormalize(cmd *cobra.Command, a *app, opts normalizeOptions, path string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	translations, err := loadTranslations(cfg.Normalize.TranslationsFile)
	if err != nil {
		return err
	}

	var input io.Reader = cmd.InOrStdin()
	interactive := !opts.noPrompt
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	} else {
		// stdin carries the data, so there is nobody to ask.
		interactive = false
	}

	in, err := csvio.NewReader(input)
	if err != nil {
		return err
	}
	header, err := in.ReadHeader()
	if err != nil {
		return err
	}

	inferZip := cfg.Normalize.InferZip
	var source geo.Source
	openSource := func() error {
		if source != nil {
			return nil
		}
		s, err := geo.Open(ctx, cfg.Lookup)
		if err != nil {
			return err
		}
		source = s
		return nil
	}
	defer func() {
		if source != nil {
			source.Close()
		}
	}()

	probe := core.NewPipeline(pipelineOptions(cfg, translations, a, inferZip), nil)
	_, err = probe.Preflight(header)
	var missingZip *core.MissingZipError
	switch {
	case errors.As(err, &missingZip):
		if opts.assumeYes || (interactive && confirm(cmd, "The file has no zip column. Detect zip codes from city and state? [y/N] ")) {
			inferZip = true
		}
	case err != nil:
		return err
	}

	if inferZip {
		if err := openSource(); err != nil {
			return err
		}
		if source == nil {
			return core.ErrNoZipSource
		}
	}

	var zipSource core.ZipSource
	if source != nil {
		zipSource = source
	}
	p := core.NewPipeline(pipelineOptions(cfg, translations, a, inferZip), zipSource)

	out, closeOut, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, header, in, csvio.NewWriter(out))
	if err := closeOut(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	report(a, res, cfg.Normalize.Hash())
	return nil
}

func pipelineOptions(cfg *config.Config, translations core.TranslationTable, a *app, inferZip bool) core.Options {
	return core.Options{
		Translations:   translations,
		DefaultRegion:  cfg.Normalize.DefaultRegion,
		Hash:           cfg.Normalize.Hash(),
		InferZip:       inferZip,
		CanonicalEmail: cfg.Normalize.EmailCanonical,
		BatchSize:      cfg.Normalize.BatchSize,
		Zip: core.ZipResolverOptions{
			Seed:        cfg.Lookup.Seed,
			Concurrency: cfg.Lookup.Concurrency,
			Timeout:     cfg.Lookup.Timeout,
			MaxAttempts: cfg.Lookup.MaxRetries,
		},
		Logger: a.logger,
		OnProgress: func(p core.RunProgress) {
			a.logger.Debug("progress", "run_id", p.RunID, "line", p.Line, "emitted", p.Emitted, "warnings", p.Warnings)
		},
	}
}

func loadTranslations(path string) (core.TranslationTable, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open translations: %w", err)
	}
	defer f.Close()
	return core.LoadTranslations(f)
}

// openOutput returns stdout or a new file whose directory must exist.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := csvio.CreateFile(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func report(a *app, res *core.RunResult, hashed bool) {
	attrs := []any{
		"run_id", res.RunID,
		"rows", res.Rows,
		"emitted", res.Emitted,
		"skipped_empty", res.SkippedEmpty,
		"warnings", len(res.Warnings),
		"zip_lookups", res.ZipLookups,
		"duration", res.Duration.Round(time.Millisecond),
	}
	if hashed {
		attrs = append(attrs, "hashed_cells", res.HashedCells, "hash_duration", res.HashDuration.Round(time.Millisecond))
	}
	a.logger.Info("normalization finished", attrs...)
}
