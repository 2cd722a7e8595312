// Package archive extracts downloaded DEM archives into the output
// tree, preserving the archive's internal folder structure.
//
// Entries whose name ends in an excluded suffix (by default the
// auxiliary _num.tif quality band) are never written to disk. All other
// file entries land at outputRoot/entryPath; parent directories are
// created as needed and directory entries are otherwise ignored.
//
// Extraction is idempotent by construction: re-running overwrites the
// same bytes at the same paths.
package archive
