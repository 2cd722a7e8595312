package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Outcome reports the result of extracting one archive.
type Outcome struct {
	ArchivePath string
	Extracted   []string
}

// Extract writes the contents of the zip at archivePath under
// outputRoot, skipping entries that end in any of excludeSuffixes.
//
// Any read or write error aborts this archive but is reported to the
// caller rather than panicking the run; other archives are unaffected.
func Extract(archivePath, outputRoot string, excludeSuffixes []string) (Outcome, error) {
	outcome := Outcome{ArchivePath: archivePath}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return outcome, fmt.Errorf("open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if excluded(entry.Name, excludeSuffixes) {
			continue
		}
		// Directories are implied by the file entries below them.
		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(entry.Name)) {
			return outcome, fmt.Errorf("archive %s: entry %q escapes output root", filepath.Base(archivePath), entry.Name)
		}

		target := filepath.Join(outputRoot, filepath.FromSlash(entry.Name))
		if err := writeEntry(entry, target); err != nil {
			return outcome, fmt.Errorf("archive %s: %w", filepath.Base(archivePath), err)
		}
		outcome.Extracted = append(outcome.Extracted, target)
	}

	return outcome, nil
}

func excluded(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}
