// Package mirror uploads the extracted output tree to an object
// storage bucket, keyed by path relative to the output root.
//
// Keys that already exist in the bucket are skipped, the same
// existence-as-done invariant the rest of the pipeline uses, so an
// interrupted mirror can simply be run again.
package mirror
