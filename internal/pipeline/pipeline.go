package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/opentopo/demfetch/internal/archive"
	"github.com/opentopo/demfetch/internal/batch"
	"github.com/opentopo/demfetch/internal/fetch"
	"github.com/opentopo/demfetch/internal/progress"
	"github.com/opentopo/demfetch/internal/worklist"
)

// Options configures a pipeline run.
type Options struct {
	// StagingDir holds downloaded archives before extraction.
	StagingDir string

	// OutputDir receives the extracted raster files.
	OutputDir string

	// Workers is the download pool cap.
	// Default: 4
	Workers int

	// BatchSize partitions the work list; zero means one batch.
	BatchSize int

	// ExcludeSuffixes lists archive entry suffixes that are never
	// extracted.
	ExcludeSuffixes []string

	// DeleteArchives removes staged archives after the run.
	DeleteArchives bool

	// RetryFailed re-runs the failed set once after the main pass.
	RetryFailed bool

	// Pause is the delay between download batches. Negative disables.
	Pause time.Duration

	// ProgressWriter receives progress bars. nil disables them.
	ProgressWriter io.Writer
}

// Summary aggregates the outcome of one run. Held in memory only; the
// filesystem is the durable record.
type Summary struct {
	Downloaded  []string
	Processed   []string
	Extracted   int
	Failed      []batch.Failure
	Interrupted bool
	Remaining   int
}

// Pipeline orchestrates download and extraction for a work list.
type Pipeline struct {
	fetcher *fetch.Fetcher
	opts    Options
	log     zerolog.Logger
}

// New creates a pipeline around the given fetcher.
func New(fetcher *fetch.Fetcher, opts Options, log zerolog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ProgressWriter == nil {
		opts.ProgressWriter = io.Discard
	}
	return &Pipeline{fetcher: fetcher, opts: opts, log: log}
}

// Run downloads every item, extracts the staged archives, and returns
// the aggregated summary. Item failures never abort the run; only a
// setup error (unusable staging directory) is returned as err.
func (p *Pipeline) Run(ctx context.Context, items []worklist.Item) (*Summary, error) {
	if err := os.MkdirAll(p.opts.StagingDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return nil, err
	}

	summary := &Summary{}
	downloadFailures := p.pass(ctx, items, summary)

	if p.opts.RetryFailed && len(downloadFailures) > 0 && !summary.Interrupted {
		retryItems := make([]worklist.Item, 0, len(downloadFailures))
		for _, f := range downloadFailures {
			retryItems = append(retryItems, worklist.Item{
				URL:  f.Locator,
				Name: filepath.Base(f.Locator),
			})
		}
		p.log.Info().Int("count", len(retryItems)).Msg("retrying failed downloads")

		// Drop the failures being retried so a second failure is
		// recorded once, not accumulated. Extraction failures are not
		// download work and stay recorded.
		summary.Failed = withoutLocators(summary.Failed, downloadFailures)
		p.pass(ctx, retryItems, summary)
	}

	if p.opts.DeleteArchives && !summary.Interrupted {
		if err := p.cleanupStaging(); err != nil {
			p.log.Warn().Err(err).Msg("staging cleanup incomplete")
		}
	}

	return summary, nil
}

// pass runs one download stage followed by one extraction stage,
// accumulating into summary. Only the download stage's failures are
// returned; those are the retryable ones, keyed by URL.
func (p *Pipeline) pass(ctx context.Context, items []worklist.Item, summary *Summary) []batch.Failure {
	downloaded, failures := p.downloadStage(ctx, items, summary)
	p.extractStage(downloaded, summary)
	return failures
}

// downloadStage fetches all items concurrently and returns the staged
// archive paths, including archives found already present, along with
// the download failures.
func (p *Pipeline) downloadStage(ctx context.Context, items []worklist.Item, summary *Summary) ([]string, []batch.Failure) {
	if len(items) == 0 {
		return nil, nil
	}

	bar := progress.NewStage(len(items), "downloading", p.opts.ProgressWriter)

	var (
		mu     sync.Mutex
		staged []string
	)

	sched := batch.NewScheduler[worklist.Item](batch.Options{
		Workers:   p.opts.Workers,
		BatchSize: p.opts.BatchSize,
		Pause:     p.opts.Pause,
	}, p.log)

	res := sched.Run(ctx, items,
		func(ctx context.Context, item worklist.Item) error {
			dest := filepath.Join(p.opts.StagingDir, item.Name)
			_, err := p.fetcher.Fetch(ctx, item.URL, dest)
			bar.Add(1)
			if err != nil {
				return err
			}
			mu.Lock()
			staged = append(staged, dest)
			mu.Unlock()
			return nil
		},
		func(item worklist.Item) string { return item.URL },
	)

	summary.Downloaded = append(summary.Downloaded, staged...)
	summary.Failed = append(summary.Failed, res.Failures...)
	summary.Interrupted = summary.Interrupted || res.Interrupted
	summary.Remaining += res.Remaining

	return staged, res.Failures
}

// withoutLocators returns failures minus the entries whose locator
// appears in drop.
func withoutLocators(failures, drop []batch.Failure) []batch.Failure {
	dropped := make(map[string]struct{}, len(drop))
	for _, f := range drop {
		dropped[f.Locator] = struct{}{}
	}
	var kept []batch.Failure
	for _, f := range failures {
		if _, ok := dropped[f.Locator]; !ok {
			kept = append(kept, f)
		}
	}
	return kept
}

// extractStage runs a sequential pass over the staged archives. Each
// archive failure is recorded and the pass continues; extraction is not
// skip-guarded, so a re-run always re-extracts.
func (p *Pipeline) extractStage(archives []string, summary *Summary) {
	if len(archives) == 0 {
		return
	}

	bar := progress.NewStage(len(archives), "extracting", p.opts.ProgressWriter)

	for _, archivePath := range archives {
		outcome, err := archive.Extract(archivePath, p.opts.OutputDir, p.opts.ExcludeSuffixes)
		bar.Add(1)
		if err != nil {
			p.log.Error().Err(err).Str("archive", archivePath).Msg("extraction failed")
			summary.Failed = append(summary.Failed, batch.Failure{Locator: archivePath, Err: err})
			continue
		}
		summary.Processed = append(summary.Processed, archivePath)
		summary.Extracted += len(outcome.Extracted)
	}
}

// Reprocess re-extracts every archive currently staged, without any
// network access.
func (p *Pipeline) Reprocess() (*Summary, error) {
	archives, err := worklist.ScanDir(p.opts.StagingDir, ".zip")
	if err != nil {
		return nil, err
	}

	summary := &Summary{Downloaded: archives}
	p.log.Info().Int("count", len(archives)).Msg("reprocessing staged archives")
	p.extractStage(archives, summary)
	return summary, nil
}

// cleanupStaging deletes staged archives, aggregating the files it
// could not remove.
func (p *Pipeline) cleanupStaging() error {
	archives, err := worklist.ScanDir(p.opts.StagingDir, ".zip")
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, path := range archives {
		if err := os.Remove(path); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
