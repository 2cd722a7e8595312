package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/opentopo/demfetch/internal/mirror"
	"github.com/opentopo/demfetch/internal/progress"
)

func newMirrorCommand(exitCode *int) *cobra.Command {
	var (
		bucketURL string
		outputDir string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Upload the extracted output tree to a storage bucket",
		Long: `Upload every extracted file to an object storage bucket, keyed by
path relative to the output directory. Keys that already exist are
skipped, so an interrupted mirror can be run again.`,
		Run: func(cmd *cobra.Command, args []string) {
			*exitCode = runMirror(bucketURL, outputDir, workers)
		},
	}

	cmd.Flags().StringVar(&bucketURL, "bucket", "", "Destination bucket URL (required)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Extracted output directory to upload")
	cmd.MarkFlagRequired("bucket")
	cmd.Flags().IntVar(&workers, "workers", 4, "Number of concurrent uploads")

	return cmd
}

func runMirror(bucketURL, outputDir string, workers int) int {
	log := newLogger()

	cfg, code := loadConfig()
	if code != ExitSuccess {
		return code
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer bucket.Close()

	summary, err := mirror.Upload(ctx, bucket, outputDir, mirror.Options{Workers: workers}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if summary != nil {
			fmt.Fprintf(os.Stderr, "Uploaded %d file(s) before failing. Run again to continue.\n", summary.Uploaded)
		}
		return ExitGeneralError
	}

	fmt.Printf("Uploaded %d file(s) (%s), skipped %d already present.\n",
		summary.Uploaded, progress.FormatBytes(summary.Bytes), summary.Skipped)
	if summary.Interrupted {
		fmt.Println("Mirror interrupted. Run again to continue where it left off.")
	}
	return ExitSuccess
}
