package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentopo/demfetch/internal/fetch"
	"github.com/opentopo/demfetch/internal/worklist"
)

// zipBytes builds an in-memory archive, padded past the fetcher's
// small-file threshold so the magic check never triggers.
func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.SetComment(string(bytes.Repeat([]byte{'x'}, 1200))))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testPipeline(t *testing.T, dir string, fopts fetch.FetcherOptions, opts Options) *Pipeline {
	t.Helper()
	if fopts.Attempts == 0 {
		fopts.Attempts = 1
	}
	if fopts.Delay == 0 {
		fopts.Delay = time.Millisecond
	}
	client := fetch.NewClient(fetch.Options{Token: "tok"})
	fetcher := fetch.NewFetcher(client, fopts, zerolog.Nop())

	opts.StagingDir = filepath.Join(dir, "staging")
	opts.OutputDir = filepath.Join(dir, "out")
	opts.Pause = -1
	if opts.ExcludeSuffixes == nil {
		opts.ExcludeSuffixes = []string{"_num.tif"}
	}
	return New(fetcher, opts, zerolog.Nop())
}

func TestRunDownloadsAndExtracts(t *testing.T) {
	archives := map[string][]byte{
		"/a.zip": zipBytes(t, map[string][]byte{
			"A/a_dem.tif": []byte("dem a"),
			"A/a_num.tif": []byte("num a"),
		}),
		"/b.zip": zipBytes(t, map[string][]byte{
			"B/b_dem.tif": []byte("dem b"),
		}),
	}

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		data, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 2})

	items := []worklist.Item{
		{URL: server.URL + "/a.zip", Name: "a.zip"},
		{URL: server.URL + "/b.zip", Name: "b.zip"},
	}

	summary, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Len(t, summary.Downloaded, 2)
	assert.Len(t, summary.Processed, 2)
	assert.Equal(t, 2, summary.Extracted)
	assert.Empty(t, summary.Failed)
	assert.False(t, summary.Interrupted)

	out := filepath.Join(dir, "out")
	assert.FileExists(t, filepath.Join(out, "A", "a_dem.tif"))
	assert.FileExists(t, filepath.Join(out, "B", "b_dem.tif"))
	assert.NoFileExists(t, filepath.Join(out, "A", "a_num.tif"))

	// A second run must issue zero network requests: presence of the
	// staged archives is the completion marker.
	before := requests.Load()
	summary2, err := p.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, before, requests.Load())
	assert.Len(t, summary2.Processed, 2, "extraction is not skip-guarded")
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	good := zipBytes(t, map[string][]byte{"g_dem.tif": []byte("ok")})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.zip" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(good)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 2})

	summary, err := p.Run(context.Background(), []worklist.Item{
		{URL: server.URL + "/good.zip", Name: "good.zip"},
		{URL: server.URL + "/bad.zip", Name: "bad.zip"},
	})
	require.NoError(t, err)

	assert.Len(t, summary.Processed, 1)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, server.URL+"/bad.zip", summary.Failed[0].Locator)
}

func TestRunRetryFailedRecordsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 1, RetryFailed: true})

	summary, err := p.Run(context.Background(), []worklist.Item{
		{URL: server.URL + "/always-broken.zip", Name: "always-broken.zip"},
	})
	require.NoError(t, err)

	// The failed set is cleared before the retry pass, so a second
	// failure appears once, not accumulated.
	require.Len(t, summary.Failed, 1)
}

func TestRunRetryFailedIgnoresExtractionFailures(t *testing.T) {
	// Large enough to pass the download sanity check, but not a zip.
	payload := bytes.Repeat([]byte{'x'}, 2048)

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 1, RetryFailed: true})

	summary, err := p.Run(context.Background(), []worklist.Item{
		{URL: server.URL + "/bad.zip", Name: "bad.zip"},
	})
	require.NoError(t, err)

	// The download succeeded; only extraction failed. That failure is
	// keyed by the staging path and must never be fed back to the
	// fetcher as a URL.
	assert.Equal(t, int32(1), requests.Load(), "extraction failures must not trigger a retry pass")
	assert.Len(t, summary.Downloaded, 1, "retrying must not double-count the staged archive")
	assert.Empty(t, summary.Processed)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "staging", "bad.zip"), summary.Failed[0].Locator)
}

func TestRunRetryFailedRecovers(t *testing.T) {
	payload := zipBytes(t, map[string][]byte{"x_dem.tif": []byte("late")})

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the first request, succeed afterwards.
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 1, RetryFailed: true})

	summary, err := p.Run(context.Background(), []worklist.Item{
		{URL: server.URL + "/flaky.zip", Name: "flaky.zip"},
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Failed)
	assert.Len(t, summary.Processed, 1)
	assert.FileExists(t, filepath.Join(dir, "out", "x_dem.tif"))
}

func TestRunDeleteArchives(t *testing.T) {
	payload := zipBytes(t, map[string][]byte{"y_dem.tif": []byte("y")})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{Workers: 1, DeleteArchives: true})

	_, err := p.Run(context.Background(), []worklist.Item{
		{URL: server.URL + "/y.zip", Name: "y.zip"},
	})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "staging", "y.zip"))
	assert.FileExists(t, filepath.Join(dir, "out", "y_dem.tif"))
}

func TestReprocess(t *testing.T) {
	dir := t.TempDir()
	p := testPipeline(t, dir, fetch.FetcherOptions{}, Options{})

	staging := filepath.Join(dir, "staging")
	require.NoError(t, os.MkdirAll(staging, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(staging, "tile.zip"),
		zipBytes(t, map[string][]byte{
			"T/t_dem.tif": []byte("t"),
			"T/t_num.tif": []byte("n"),
		}),
		0o644,
	))

	summary, err := p.Reprocess()
	require.NoError(t, err)

	assert.Len(t, summary.Processed, 1)
	assert.Equal(t, 1, summary.Extracted)
	assert.FileExists(t, filepath.Join(dir, "out", "T", "t_dem.tif"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "T", "t_num.tif"))
}
