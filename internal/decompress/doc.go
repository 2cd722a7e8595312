// Package decompress turns a single gzip-compressed elevation tile into
// its decompressed sibling (x.hgt.gz -> x.hgt) and removes the source.
//
// The decompressed output's presence on disk is the completion marker:
// if it already exists the file is treated as done and a leftover .gz
// source is deleted as cleanup. On failure both the source and any
// partial output are left in place for inspection, a deliberate
// asymmetry versus the fetcher's corrupt-download cleanup.
package decompress
