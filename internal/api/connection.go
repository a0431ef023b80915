// Package api talks to the repository HTTP API: direct uploads, resources,
// background jobs and authentication.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sdr-go/internal/sdr"
)

// Paths of the repository API.
const (
	DirectUploadsPath = "/v1/direct_uploads"
	ResourcesPath     = "/v1/resources"
	JobResultsPath    = "/v1/background_job_results"
	LoginPath         = "/v1/auth/login"
	ProxyPath         = "/v1/auth/proxy"
)

// CocinaVersionHeader carries the document schema version on resource calls.
const CocinaVersionHeader = "X-Cocina-Models-Version"

// Options configure a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	CocinaVersion string
	// Tokens supplies bearer tokens. Nil sends unauthenticated requests.
	Tokens sdr.TokenProvider
	Logger sdr.Logger
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client is a connection to the repository API. It is safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	tokens        sdr.TokenProvider
	logger        sdr.Logger
	cocinaVersion string
}

// NewClient creates a Client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = sdr.NewNopLogger()
	}

	return &Client{
		baseURL:       base,
		http:          httpClient,
		tokens:        opts.Tokens,
		logger:        logger,
		cocinaVersion: opts.CocinaVersion,
	}, nil
}

// resolve turns an API path, or a URL handed out by the server, into an
// absolute URL.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	joined := *c.baseURL
	joined.Path = c.baseURL.Path + "/" + strings.TrimLeft(u.Path, "/")
	joined.RawQuery = u.RawQuery
	return joined.String(), nil
}

// request describes one authenticated API call. body is re-encoded on retry.
type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// response is a completed API call with its body fully read.
type response struct {
	status int
	body   []byte
}

// do sends an authenticated request. A 401 triggers one token refresh and
// one retry; a second 401 is returned to the caller.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}

	resp, err := c.send(ctx, r, token)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized || c.tokens == nil {
		return resp, nil
	}

	c.logger.Info("request unauthorized, refreshing token", "op", r.op)
	token, err = c.tokens.RefreshToken(ctx, token)
	if err != nil {
		c.logger.Warn("token refresh failed", "op", r.op, "error", err)
		return resp, nil
	}
	return c.send(ctx, r, token)
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, r request, token string) (*response, error) {
	target, err := c.resolve(r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api request", "op", r.op, "method", r.method, "url", target)
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", r.op, err)
	}
	c.logger.Debug("api response", "op", r.op, "status", httpResp.StatusCode, "bytes", len(data))
	return &response{status: httpResp.StatusCode, body: data}, nil
}

// expect fails with an UnexpectedResponseError unless the status is one of want.
func (r *response) expect(op string, want ...int) error {
	for _, w := range want {
		if r.status == w {
			return nil
		}
	}
	return sdr.NewUnexpectedResponse(op, r.status, r.body)
}

// identifier decodes ids the server sends either as strings or numbers.
type identifier string

func (id *identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %s", data)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("invalid numeric identifier: %s", data)
	}
	*id = identifier(n.String())
	return nil
}
