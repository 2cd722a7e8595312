package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("fetch: resource not found")
	ErrForbidden     = errors.New("fetch: access forbidden")
	ErrUnauthorized  = errors.New("fetch: unauthorized")
	ErrLoginRedirect = errors.New("fetch: redirected to login page")
	ErrHTMLPayload   = errors.New("fetch: received HTML instead of file data")
	ErrServerError   = errors.New("fetch: server error")
)

// IsAuthFailure reports whether err indicates a credential problem that
// retrying cannot fix: an invalid or expired token, a missing data-use
// agreement, or a provider that served its login page instead of data.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrLoginRedirect) ||
		errors.Is(err, ErrHTMLPayload)
}

// Options configures the HTTP client.
type Options struct {
	// Token is the bearer token attached to every request.
	Token string

	// Timeout for individual requests.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// LoginRedirectPattern is a substring of the authentication
	// provider's login URL. A request whose final resolved URL contains
	// it is classified as an authentication failure.
	// Default: "urs.earthdata.nasa.gov/oauth/authorize"
	LoginRedirectPattern string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:              60 * time.Second,
		MaxIdleConnsPerHost:  16,
		LoginRedirectPattern: "urs.earthdata.nasa.gov/oauth/authorize",
	}
}

// Client is an HTTP client that carries a bearer credential. It holds no
// per-request mutable state and is safe for concurrent use by all
// download workers.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new authenticated HTTP client.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = 16
	}
	if opts.LoginRedirectPattern == "" {
		opts.LoginRedirectPattern = "urs.earthdata.nasa.gov/oauth/authorize"
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// do issues an authenticated GET with redirects followed and classifies
// the response. The caller owns resp.Body on a nil error.
func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	// The provider redirects unauthenticated requests to its login
	// flow instead of answering 401.
	if resp.Request != nil && strings.Contains(resp.Request.URL.String(), c.opts.LoginRedirectPattern) {
		resp.Body.Close()
		return nil, ErrLoginRedirect
	}

	if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// Get performs an authenticated GET request and returns the response
// body on success.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, status)
	default:
		return fmt.Errorf("unexpected status code: %s", status)
	}
}
