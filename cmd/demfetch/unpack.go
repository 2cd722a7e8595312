package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opentopo/demfetch/internal/pipeline"
	"github.com/opentopo/demfetch/internal/progress"
)

func newUnpackCommand(exitCode *int) *cobra.Command {
	var (
		dataDir   string
		suffix    string
		workers   int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "unpack",
		Short: "Decompress a local corpus of compressed elevation tiles",
		Long: `Decompress every compressed tile under the data directory in bounded
batches. The run is resumable: already-decompressed tiles are skipped
and the command can be interrupted with Ctrl+C and started again.`,
		Run: func(cmd *cobra.Command, args []string) {
			*exitCode = runUnpack(dataDir, suffix, workers, batchSize)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", filepath.Join("data", "mapzen"), "Directory containing compressed tiles")
	cmd.Flags().StringVar(&suffix, "suffix", ".hgt.gz", "Compressed file suffix to look for")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of decompression workers (0 = min(8, CPUs))")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "Files per batch")

	return cmd
}

func runUnpack(dataDir, suffix string, workers, batchSize int) int {
	log := newLogger()

	ctx, cancel := signalContext(log)
	defer cancel()

	summary, err := pipeline.Unpack(ctx, dataDir, pipeline.UnpackOptions{
		Suffix:         suffix,
		Workers:        workers,
		BatchSize:      batchSize,
		ProgressWriter: os.Stderr,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}

	printRule(os.Stdout)
	fmt.Println("EXTRACTION SUMMARY")
	printRule(os.Stdout)
	fmt.Printf("Compressed tiles found: %d\n", summary.Found)
	fmt.Printf("Extracted this run:     %d\n", summary.Extracted)
	fmt.Printf("Already extracted:      %d\n", summary.AlreadyDone)
	fmt.Printf("Failed:                 %d\n", len(summary.Failed))

	if len(summary.Failed) > 0 {
		fmt.Println("\nFailed files:")
		shown := summary.Failed
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, f := range shown {
			fmt.Printf("  - %s: %v\n", f.Locator, f.Err)
		}
		if extra := len(summary.Failed) - len(shown); extra > 0 {
			fmt.Printf("  ... and %d more\n", extra)
		}
	}

	if summary.Remaining > 0 {
		fmt.Printf("\n%d files still need extraction. Run again to continue.\n", summary.Remaining)
	} else {
		fmt.Println("\nAll tiles have been extracted.")
		if summary.TotalBytes > 0 {
			fmt.Printf("Total uncompressed data size: %s\n", progress.FormatBytes(summary.TotalBytes))
		}
	}
	printRule(os.Stdout)

	return ExitSuccess
}
