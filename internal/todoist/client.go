// Package todoist is a small client for the Todoist REST and Sync
// APIs covering tasks, projects, sections, comments and the legacy id
// mapping endpoint.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public Todoist API host.
	DefaultBaseURL = "https://api.todoist.com"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 15 * time.Second

	apiPrefix = "/api/v1"

	// maxResponseBody caps how much of a response is read into memory.
	maxResponseBody = 8 << 20

	// maxErrorBody caps how much of an error body is kept on APIError.
	maxErrorBody = 1024

	// maxPages guards list pagination against a cursor that never ends.
	maxPages = 100
)

// APIError is a non-2xx response from Todoist. It unwraps to
// ErrAPIResponse.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return apperrors.ErrAPIResponse
}

// IsNotFound reports whether err is a 404 from Todoist.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger

	// HTTPClient supplies the base transport. The bearer token is
	// layered on top of it.
	HTTPClient *http.Client
}

// Client calls the Todoist API with a fixed API token.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client. Every request carries the token as a Bearer
// credential and is bounded by the configured timeout.
func New(opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})

	return &Client{
		baseURL: baseURL,
		http:    oauth2.NewClient(ctx, src),
		timeout: timeout,
		logger:  logger,
	}
}

// send performs one request and returns the response body. Non-2xx
// responses become *APIError; transport failures (including timeouts)
// wrap ErrAPIRequest.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building %s %s: %w", apperrors.ErrAPIRequest, method, path, err)
	}

	req.Header.Set("Accept", "application/json")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("todoist request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %s %s: %w", apperrors.ErrAPIRequest, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s: %w", apperrors.ErrAPIRequest, method, path, err)
	}

	c.logger.Debug("todoist request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(data)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}

		return nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(msg)}
	}

	return data, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes the
// response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}

		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	data, err := c.send(ctx, method, path, query, contentType, body)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", apperrors.ErrAPIResponse, path, err)
	}

	return nil
}

type page[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

// list follows next_cursor until the listing is exhausted.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}

	var all []T

	for i := 0; i < maxPages; i++ {
		var p page[T]
		if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &p); err != nil {
			return nil, err
		}

		all = append(all, p.Results...)

		if p.NextCursor == nil || *p.NextCursor == "" {
			return all, nil
		}

		query.Set("cursor", *p.NextCursor)
	}

	return nil, fmt.Errorf("%w: %s: pagination did not terminate", apperrors.ErrAPIResponse, path)
}

// escape quotes an id for use as a path segment.
func escape(id string) string {
	return url.PathEscape(id)
}
