package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opentopo/demfetch/internal/auth"
	"github.com/opentopo/demfetch/internal/config"
	"github.com/opentopo/demfetch/internal/fetch"
	"github.com/opentopo/demfetch/internal/pipeline"
	"github.com/opentopo/demfetch/internal/worklist"
)

func newFetchCommand(exitCode *int) *cobra.Command {
	var (
		urlSource      string
		outputDir      string
		stagingDir     string
		workers        int
		batchSize      int
		start          int
		end            int
		testMode       bool
		deleteArchives bool
		retryFailed    bool
		reprocess      bool
		token          string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download DEM archives and extract raster files",
		Long: `Download DEM archives from a URL listing, extract the raster files,
and discard auxiliary bands. Already-staged archives are skipped, so an
interrupted run can simply be started again.`,
		Run: func(cmd *cobra.Command, args []string) {
			overrides := fetchOverrides{
				urlSource:  urlSource,
				outputDir:  outputDir,
				stagingDir: stagingDir,
				workers:    workers,
				batchSize:  batchSize,
				changed:    cmd.Flags().Changed,
			}
			*exitCode = runFetch(overrides, start, end, testMode, deleteArchives, retryFailed, reprocess, token)
		},
	}

	cmd.Flags().StringVar(&urlSource, "url-source", "", "URL or local file containing archive URLs")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for extracted files")
	cmd.Flags().StringVar(&stagingDir, "staging-dir", "", "Directory for downloaded archives")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of parallel download workers")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Items per download batch (0 = single batch)")
	cmd.Flags().IntVar(&start, "start", 0, "Start index in the work list")
	cmd.Flags().IntVar(&end, "end", -1, "End index in the work list (-1 = all)")
	cmd.Flags().BoolVar(&testMode, "test", false, "Download only the first item with one worker")
	cmd.Flags().BoolVar(&deleteArchives, "delete-archives", false, "Delete staged archives after extraction")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Retry failed downloads once after the main pass")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "Re-extract staged archives without downloading")
	cmd.Flags().StringVar(&token, "token", "", "NASA Earthdata bearer token")

	return cmd
}

type fetchOverrides struct {
	urlSource  string
	outputDir  string
	stagingDir string
	workers    int
	batchSize  int
	changed    func(string) bool
}

func runFetch(o fetchOverrides, start, end int, testMode, deleteArchives, retryFailed, reprocess bool, token string) int {
	log := newLogger()

	cfg, code := loadConfig()
	if code != ExitSuccess {
		return code
	}
	if o.urlSource != "" {
		cfg.URLSource = o.urlSource
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.stagingDir != "" {
		cfg.StagingDir = o.stagingDir
	}
	if o.changed("workers") {
		cfg.Workers = o.workers
	}
	if o.changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if testMode {
		log.Info().Msg("TEST MODE: downloading only the first item")
		end = start + 1
		cfg.Workers = 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	opts := pipeline.Options{
		StagingDir:      cfg.Staging(),
		OutputDir:       cfg.OutputDir,
		Workers:         cfg.Workers,
		BatchSize:       cfg.BatchSize,
		ExcludeSuffixes: cfg.ExcludeSuffixes,
		DeleteArchives:  deleteArchives,
		RetryFailed:     retryFailed,
		ProgressWriter:  os.Stderr,
	}

	if reprocess {
		p := pipeline.New(nil, opts, log)
		summary, err := p.Reprocess()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
		printSummary(summary)
		return ExitSuccess
	}

	resolved, err := auth.Resolve(
		auth.Explicit(token),
		auth.File(cfg.TokenFile),
		auth.Interactive{SavePath: cfg.TokenFile, Log: log},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitCredentialError
	}

	client := fetch.NewClient(fetch.Options{
		Token:   resolved,
		Timeout: cfg.Timeout,
	})

	ctx, cancel := signalContext(log)
	defer cancel()

	items, err := worklist.FromSource(ctx, client, cfg.URLSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no URLs found to process")
		return ExitSourceError
	}
	log.Info().Int("count", len(items)).Msg("work list enumerated")

	items = slice(items, start, end)
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "Error: start/end selects an empty slice")
		return ExitInvalidArgs
	}

	fetcher := fetch.NewFetcher(client, fetch.FetcherOptions{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
	}, log)

	summary, err := pipeline.New(fetcher, opts, log).Run(ctx, items)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	printSummary(summary)
	if summary.Interrupted {
		fmt.Println("Run interrupted. Run again to continue where it left off.")
	}
	return ExitSuccess
}

func loadConfig() (config.Config, int) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.LoadFromFile(flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cfg, ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, ExitInvalidArgs
	}
	return cfg, ExitSuccess
}

func slice(items []worklist.Item, start, end int) []worklist.Item {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(items) {
		end = len(items)
	}
	if start >= end {
		return nil
	}
	return items[start:end]
}

func printSummary(s *pipeline.Summary) {
	printRule(os.Stdout)
	fmt.Println("DOWNLOAD SUMMARY")
	printRule(os.Stdout)
	fmt.Printf("Archives downloaded: %d\n", len(s.Downloaded))
	fmt.Printf("Archives processed:  %d\n", len(s.Processed))
	fmt.Printf("Files extracted:     %d\n", s.Extracted)
	fmt.Printf("Failed:              %d\n", len(s.Failed))

	if len(s.Failed) > 0 {
		fmt.Println("\nFailed items:")
		shown := s.Failed
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, f := range shown {
			fmt.Printf("  - %s: %v\n", f.Locator, f.Err)
		}
		if extra := len(s.Failed) - len(shown); extra > 0 {
			fmt.Printf("  ... and %d more\n", extra)
		}
	}
	if s.Remaining > 0 {
		fmt.Printf("\nItems not processed: %d\n", s.Remaining)
	}
	printRule(os.Stdout)
}
