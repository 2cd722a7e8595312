// Package auth resolves the bearer credential attached to every
// outbound request.
//
// Sources are tried in fixed priority order: an explicit value, a
// persisted token file, then an interactive terminal prompt (with
// optional save-back to the token file). The pipeline only ever
// consumes the resolved token string.
package auth
