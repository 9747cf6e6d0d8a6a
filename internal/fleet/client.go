package fleet

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	apiPrefix = "/api/v1/fleet"
	userAgent = "fleetmirror/0.1"

	// errBodyLimit caps how much of an error response body is kept for
	// the APIError message.
	errBodyLimit = 1024
)

// Options configures a Client.
type Options struct {
	BaseURL   string        // e.g. "https://fleet.example.com"
	Token     string        // bearer token; empty means unauthenticated
	Timeout   time.Duration // per-request timeout
	TLSVerify bool          // verify server certificates
	Logger    *slog.Logger
}

// Client is an HTTP client for the Fleet API. It handles request
// construction, bearer authentication, and error classification.
//
// The client never retries: a transient failure is classified and surfaced
// to the caller, which owns continuation policy. Pagination loops in the
// sync engine stop at the first failing page rather than skip it, so a
// collection is never silently under-counted.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Fleet API client. TLS verification follows
// opts.TLSVerify; the permissive default suits lab deployments with
// self-signed certificates.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !opts.TLSVerify, //nolint:gosec // configurable, documented permissive default
		},
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// HasToken reports whether an API token is configured. The engine checks
// this before starting a run; without a token the run is an intentional
// no-op.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// get executes a single GET against the Fleet API and decodes the JSON
// response body into out. path is relative to the /api/v1/fleet prefix.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.token == "" {
		return ErrNoToken
	}

	url := c.baseURL + apiPrefix + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fleet: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fleet: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		if readErr != nil {
			body = []byte("(failed to read response body)")
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fleet: decoding %s response: %w", path, err)
	}

	c.logger.Debug("request succeeded",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return nil
}

// Version returns the Fleet server version string. Best-effort: callers
// log the result and tolerate failure.
func (c *Client) Version(ctx context.Context) (string, error) {
	var vr struct {
		Version string `json:"version"`
	}

	if err := c.get(ctx, "/version", &vr); err != nil {
		return "", err
	}

	return vr.Version, nil
}
