package pipeline

import (
	"context"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opentopo/demfetch/internal/batch"
	"github.com/opentopo/demfetch/internal/decompress"
	"github.com/opentopo/demfetch/internal/progress"
	"github.com/opentopo/demfetch/internal/worklist"
)

// UnpackOptions configures a corpus decompression run.
type UnpackOptions struct {
	// Suffix selects the compressed files to unpack.
	// Default: ".hgt.gz"
	Suffix string

	// Workers caps the decompression pool.
	// Default: min(8, NumCPU)
	Workers int

	// BatchSize partitions the file list.
	// Default: 1000
	BatchSize int

	// Pause is the delay between batches. Negative disables.
	Pause time.Duration

	// ProgressWriter receives progress bars. nil disables them.
	ProgressWriter io.Writer
}

// UnpackSummary aggregates the outcome of one unpack run.
type UnpackSummary struct {
	// Found is how many compressed files the scan discovered.
	Found int

	// Extracted counts files decompressed during this run.
	Extracted int

	// AlreadyDone counts files whose output already existed.
	AlreadyDone int

	// Failed lists files that could not be decompressed.
	Failed []batch.Failure

	// Interrupted is true when the run was cancelled mid-way.
	Interrupted bool

	// Remaining counts compressed files still on disk afterwards.
	Remaining int

	// TotalBytes is the uncompressed corpus size when the run
	// finished with nothing left to do.
	TotalBytes int64
}

// Unpack decompresses every matching file under root in resumable
// batches. Interrupting and re-running continues where the previous
// run left off, since finished tiles are skipped by their output's
// presence.
func Unpack(ctx context.Context, root string, opts UnpackOptions, log zerolog.Logger) (*UnpackSummary, error) {
	if opts.Suffix == "" {
		opts.Suffix = ".hgt.gz"
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if max := runtime.NumCPU(); opts.Workers > max {
		opts.Workers = max
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 1000
	}
	if opts.ProgressWriter == nil {
		opts.ProgressWriter = io.Discard
	}

	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	files, err := worklist.ScanDir(root, opts.Suffix)
	if err != nil {
		return nil, err
	}

	summary := &UnpackSummary{Found: len(files)}
	if len(files) == 0 {
		summary.TotalBytes = corpusSize(root, trimGz(opts.Suffix))
		return summary, nil
	}

	log.Info().
		Int("files", len(files)).
		Int("batch_size", opts.BatchSize).
		Int("workers", opts.Workers).
		Msg("unpacking corpus")

	bar := progress.NewStage(len(files), "unpacking", opts.ProgressWriter)

	var mu sync.Mutex
	sched := batch.NewScheduler[string](batch.Options{
		Workers:   opts.Workers,
		BatchSize: opts.BatchSize,
		Pause:     opts.Pause,
	}, log)

	res := sched.Run(ctx, files,
		func(ctx context.Context, path string) error {
			skipped, err := decompress.File(path)
			bar.Add(1)
			if err != nil {
				return err
			}
			mu.Lock()
			if skipped {
				summary.AlreadyDone++
			} else {
				summary.Extracted++
			}
			mu.Unlock()
			return nil
		},
		func(path string) string { return path },
	)

	summary.Failed = res.Failures
	summary.Interrupted = res.Interrupted

	// The filesystem is the record: count what is actually left.
	remaining, err := worklist.ScanDir(root, opts.Suffix)
	if err != nil {
		return summary, err
	}
	summary.Remaining = len(remaining)
	if summary.Remaining == 0 {
		summary.TotalBytes = corpusSize(root, trimGz(opts.Suffix))
	}

	return summary, nil
}

// corpusSize sums the sizes of files ending in suffix under root.
func corpusSize(root, suffix string) int64 {
	files, err := worklist.ScanDir(root, suffix)
	if err != nil {
		return 0
	}
	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	return total
}

func trimGz(suffix string) string {
	return strings.TrimSuffix(suffix, ".gz")
}
