package worklist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opentopo/demfetch/internal/fetch"
)

// Item is one unit of fetch work. Immutable once enumerated.
type Item struct {
	// URL is the source locator.
	URL string

	// Name is the archive filename derived from the URL.
	Name string
}

// FromSource enumerates items from source, which is either a URL
// (fetched with the authenticated client) or a local file path.
func FromSource(ctx context.Context, client *fetch.Client, source string) ([]Item, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return FromURL(ctx, client, source)
	}
	return FromFile(source)
}

// FromURL retrieves a plaintext listing over the network and parses it.
func FromURL(ctx context.Context, client *fetch.Client, url string) ([]Item, error) {
	body, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", url, err)
	}
	defer body.Close()

	items, err := parse(body)
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", url, err)
	}
	return items, nil
}

// FromFile parses a plaintext listing from local disk.
func FromFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	defer f.Close()

	items, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", path, err)
	}
	return items, nil
}

// parse reads one locator per line, dropping anything that does not
// start with a recognized scheme.
func parse(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			continue
		}
		items = append(items, Item{
			URL:  line,
			Name: line[strings.LastIndex(line, "/")+1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ScanDir recursively enumerates files under root whose name ends in
// suffix. Ordering is directory-walk order, not guaranteed sorted.
func ScanDir(root, suffix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return paths, nil
}
