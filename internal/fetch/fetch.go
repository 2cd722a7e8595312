package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// zipMagic is the local-file-header signature every zip archive starts with.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// minArchiveSize is the threshold below which a downloaded file is
// suspicious enough to check against the archive magic number. Real DEM
// archives are several megabytes; anything under this is most likely an
// error page.
const minArchiveSize = 1000

// FetcherOptions configures retry behavior of the fetcher.
type FetcherOptions struct {
	// Attempts is the maximum number of download attempts per item.
	// Default: 3
	Attempts int

	// Delay is the fixed pause between retryable attempts.
	// Default: 5s
	Delay time.Duration

	// ChunkSize is the copy buffer size when streaming the body to disk.
	// Default: 8KB
	ChunkSize int
}

// Fetcher downloads single archives to their staging paths.
type Fetcher struct {
	client *Client
	opts   FetcherOptions
	log    zerolog.Logger
}

// NewFetcher creates a fetcher backed by the given client.
func NewFetcher(client *Client, opts FetcherOptions, log zerolog.Logger) *Fetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 5 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 8 * 1024
	}
	return &Fetcher{client: client, opts: opts, log: log}
}

// Fetch downloads url to dest. It returns skipped=true without touching
// the network when dest already exists; presence of the staging file is
// the only completion marker.
//
// Transient errors are retried up to the configured attempt cap with a
// fixed delay. Authentication failures stop immediately.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (skipped bool, err error) {
	if _, statErr := os.Stat(dest); statErr == nil {
		f.log.Debug().Str("path", dest).Msg("already downloaded, skipping")
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("create staging dir: %w", err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(f.opts.Attempts-1), retry.NewConstant(f.opts.Delay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptErr := f.attempt(ctx, url, dest)
		if attemptErr == nil {
			return nil
		}
		if IsAuthFailure(attemptErr) {
			// A dead credential won't revive; don't burn the
			// retry budget on it.
			return attemptErr
		}
		f.log.Warn().Err(attemptErr).
			Str("url", url).
			Int("attempt", attempt).
			Int("max_attempts", f.opts.Attempts).
			Msg("download attempt failed")
		return retry.RetryableError(attemptErr)
	})
	if err != nil {
		return false, fmt.Errorf("download %s: %w", filepath.Base(dest), err)
	}

	f.log.Debug().Str("url", url).Str("path", dest).Msg("downloaded")
	return false, nil
}

// attempt performs one download attempt: request, classification,
// streaming write, and the small-file sanity check.
func (f *Fetcher) attempt(ctx context.Context, url, dest string) error {
	resp, err := f.client.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A markup payload on a 200 means the provider served its login
	// page instead of the archive.
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "html") {
		return ErrHTMLPayload
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}

	buf := make([]byte, f.opts.ChunkSize)
	_, copyErr := io.CopyBuffer(out, resp.Body, buf)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(dest)
		return fmt.Errorf("write body: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(dest)
		return fmt.Errorf("close staging file: %w", closeErr)
	}

	if err := f.verifyArchive(dest); err != nil {
		os.Remove(dest)
		return err
	}

	return nil
}

// verifyArchive checks that a suspiciously small download is actually a
// zip archive and not a short error response.
func (f *Fetcher) verifyArchive(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat staging file: %w", err)
	}
	if info.Size() >= minArchiveSize {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}
	defer file.Close()

	header := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return fmt.Errorf("%s is not a valid archive (%d bytes)", filepath.Base(path), info.Size())
	}
	if !bytes.Equal(header, zipMagic) {
		return fmt.Errorf("%s is not a valid archive (bad magic)", filepath.Base(path))
	}
	return nil
}
