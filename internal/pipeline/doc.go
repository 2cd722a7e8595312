// Package pipeline wires the download and transform stages together.
//
// A run enumerates work items, downloads them concurrently through the
// batch scheduler, then extracts every successfully staged archive in a
// sequential pass. An optional retry pass re-runs the failed set, and
// an optional cleanup removes staged archives afterwards. The unpack
// job reuses the same scheduler shape for batch decompression of a
// local compressed-tile corpus.
//
// Resumability is inferred purely from the filesystem: an artifact's
// presence on disk is the sole source of truth for "already done".
// There is no manifest or job ledger; deleting an artifact is the only
// way to force re-processing.
package pipeline
