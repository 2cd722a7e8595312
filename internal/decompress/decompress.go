package decompress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// File decompresses the gzip file at gzPath to its sibling path without
// the .gz extension and deletes the source on success.
//
// It returns skipped=true when the output already existed; in that case
// a still-present source is removed as cleanup and nothing is
// re-decompressed.
func File(gzPath string) (skipped bool, err error) {
	outPath := strings.TrimSuffix(gzPath, ".gz")
	if outPath == gzPath {
		return false, fmt.Errorf("%s: not a .gz file", filepath.Base(gzPath))
	}

	if _, statErr := os.Stat(outPath); statErr == nil {
		// Output exists, so the source is redundant however the
		// output got there.
		if _, statErr := os.Stat(gzPath); statErr == nil {
			if err := os.Remove(gzPath); err != nil {
				return true, fmt.Errorf("remove stale %s: %w", filepath.Base(gzPath), err)
			}
		}
		return true, nil
	}

	src, err := os.Open(gzPath)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", filepath.Base(gzPath), err)
	}
	defer src.Close()

	zr, err := gzip.NewReader(src)
	if err != nil {
		return false, fmt.Errorf("read gzip header %s: %w", filepath.Base(gzPath), err)
	}
	defer zr.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Base(outPath), err)
	}

	if _, err := io.Copy(dst, zr); err != nil {
		// Leave the partial output and the source as-is: the
		// half-written file is evidence for debugging.
		dst.Close()
		return false, fmt.Errorf("decompress %s: %w", filepath.Base(gzPath), err)
	}
	if err := dst.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", filepath.Base(outPath), err)
	}

	src.Close()
	if err := os.Remove(gzPath); err != nil {
		return false, fmt.Errorf("remove %s: %w", filepath.Base(gzPath), err)
	}
	return false, nil
}
