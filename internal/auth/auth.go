package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoToken is returned when every source came up empty.
var ErrNoToken = errors.New("auth: no bearer token available")

// Source yields a token, or an empty string when it has none to offer.
type Source interface {
	Token() (string, error)
}

// Explicit returns a fixed token value (e.g. from a CLI flag).
type Explicit string

func (e Explicit) Token() (string, error) {
	return strings.TrimSpace(string(e)), nil
}

// File reads a single trimmed token from a plain text file. A missing
// file is not an error, just an empty result.
type File string

func (f File) Token() (string, error) {
	data, err := os.ReadFile(string(f))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Interactive prompts the terminal for a token and offers to persist it
// to SavePath for future runs.
type Interactive struct {
	// In is the prompt input. Default: os.Stdin.
	In io.Reader

	// Out is where the prompt is written. Default: os.Stderr.
	Out io.Writer

	// SavePath is the token file a 'y' answer persists to. Empty
	// disables save-back.
	SavePath string

	Log zerolog.Logger
}

func (i Interactive) Token() (string, error) {
	in := i.In
	if in == nil {
		in = os.Stdin
	}
	out := i.Out
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintln(out, "A NASA Earthdata bearer token is required.")
	fmt.Fprintln(out, "Generate one at https://urs.earthdata.nasa.gov (Generate Token).")
	fmt.Fprint(out, "Enter token: ")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", nil
	}
	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", nil
	}

	if i.SavePath != "" {
		fmt.Fprintf(out, "Save token to %s for future runs? (y/n): ", i.SavePath)
		if scanner.Scan() && strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
			if err := os.WriteFile(i.SavePath, []byte(token+"\n"), 0o600); err != nil {
				i.Log.Warn().Err(err).Str("path", i.SavePath).Msg("could not save token")
			} else {
				i.Log.Info().Str("path", i.SavePath).Msg("token saved")
			}
		}
	}

	return token, nil
}

// Resolve walks sources in order and returns the first non-empty token.
func Resolve(sources ...Source) (string, error) {
	for _, s := range sources {
		token, err := s.Token()
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}
