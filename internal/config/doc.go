// Package config defines configuration structures for the demfetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (DEMFETCH_ prefix)
//   - YAML configuration file
//
// Precedence is flags > environment > file > defaults.
package config
