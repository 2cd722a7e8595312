// Package fetch provides the authenticated HTTP client and the archive
// fetcher used by the download pipeline.
//
// This package handles:
//   - Bearer-token authentication on every outbound request
//   - Retry with a fixed delay between attempts
//   - Authentication-failure detection (login redirects, 401/403,
//     HTML payloads masking a login page)
//   - Streaming downloads to a staging path
//   - Sanity checking of suspiciously small archives
//
// # Usage
//
//	client := fetch.NewClient(fetch.Options{Token: token})
//	f := fetch.NewFetcher(client, fetch.FetcherOptions{}, logger)
//
//	skipped, err := f.Fetch(ctx, url, stagingPath)
//
// Authentication failures are permanent: retrying with the same dead
// credential cannot succeed, so the fetcher stops after the first such
// response. Use fetch.IsAuthFailure to distinguish them from transient
// network errors.
package fetch
