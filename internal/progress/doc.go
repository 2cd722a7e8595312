// Package progress renders per-stage progress bars and human-readable
// byte counts for the CLI.
package progress
