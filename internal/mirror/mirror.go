package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"
)

// Options configures a mirror run.
type Options struct {
	// Workers caps concurrent uploads.
	// Default: 4
	Workers int
}

// Summary aggregates one mirror run.
type Summary struct {
	Uploaded int
	Skipped  int
	Bytes    int64

	// Interrupted is true when cancellation stopped the run; the
	// remaining files are picked up by the next run.
	Interrupted bool
}

// Upload copies every file under root into bucket, keyed by its
// slash-separated path relative to root. Existing keys are skipped.
func Upload(ctx context.Context, bucket *blob.Bucket, root string, opts Options, log zerolog.Logger) (*Summary, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var (
		mu      sync.Mutex
		summary Summary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)

			exists, err := bucket.Exists(ctx, key)
			if err != nil {
				return fmt.Errorf("check %s: %w", key, err)
			}
			if exists {
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			n, err := upload(ctx, bucket, key, path)
			if err != nil {
				return err
			}
			log.Debug().Str("key", key).Int64("bytes", n).Msg("uploaded")

			mu.Lock()
			summary.Uploaded++
			summary.Bytes += n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			summary.Interrupted = true
			return &summary, nil
		}
		return &summary, err
	}
	return &summary, nil
}

func upload(ctx context.Context, bucket *blob.Bucket, key, path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("create writer %s: %w", key, err)
	}

	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", key, err)
	}
	return n, nil
}
