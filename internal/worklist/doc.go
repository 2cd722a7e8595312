// Package worklist enumerates the work items a pipeline run is derived
// from: archive URLs parsed from a remote or local listing, or
// compressed tiles discovered by scanning a directory tree.
//
// A listing is plain text with one locator per line. Lines that do not
// start with a recognized URL scheme (comments, blanks, malformed
// entries) are silently dropped.
//
// Enumeration failures are fatal to the caller: all downstream work is
// derived from the returned list, so a partial listing is worse than no
// listing.
package worklist
