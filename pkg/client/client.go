package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Record is one ledger record as served by the API.
type Record struct {
	Index      int       `json:"index"`
	Payload    string    `json:"payload"`
	PrevDigest string    `json:"prev_digest"`
	Digest     string    `json:"digest"`
	CreatedAt  time.Time `json:"created_at"`
}

// Overview is the response of GET /api/v1/ledger.
type Overview struct {
	Records int    `json:"records"`
	Root    string `json:"root"`
	Digest  string `json:"digest"`
}

// VerifyResult is the response of GET /api/v1/ledger/verify.
// Index and Reason are set only when Valid is false and the failure is
// attributable to a record.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Index  *int   `json:"index,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Analysis is the response of GET /api/v1/ledger/analysis.
type Analysis struct {
	Records          int            `json:"records"`
	Distribution     map[string]int `json:"distribution"`
	Intervals        int            `json:"intervals"`
	TotalGapMillis   float64        `json:"total_gap_ms"`
	AverageGapMillis float64        `json:"average_gap_ms"`
	AverageGap       string         `json:"average_gap"`
	ClockRegressions int            `json:"clock_regressions"`
}

// Client talks to a chainledger service.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a write token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the service at base (e.g. "http://localhost:8080").
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid service URL %q: %w", base, err)
	}
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Overview returns the record count, root digest and digest name.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.getJSON(ctx, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Append links a new record carrying payload.
func (c *Client) Append(ctx context.Context, payload string) (*Record, error) {
	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/ledger/records", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(resp, &r); err != nil {
		return nil, fmt.Errorf("decode record response: %w", err)
	}
	return &r, nil
}

// Records returns up to limit records starting at from. A limit of 0 lets
// the server choose its page size.
func (c *Client) Records(ctx context.Context, from, limit int) ([]Record, error) {
	q := url.Values{}
	q.Set("from", strconv.Itoa(from))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Records []Record `json:"records"`
	}
	if err := c.getJSON(ctx, "/api/v1/ledger/records", q, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Record returns the record at index.
func (c *Client) Record(ctx context.Context, index int) (*Record, error) {
	var r Record
	if err := c.getJSON(ctx, "/api/v1/ledger/records/"+strconv.Itoa(index), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Verify asks the service to walk the chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.getJSON(ctx, "/api/v1/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze returns the chain summary.
func (c *Client) Analyze(ctx context.Context) (*Analysis, error) {
	var out Analysis
	if err := c.getJSON(ctx, "/api/v1/ledger/analysis", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns the first record whose payload equals query, or ErrNotFound.
func (c *Client) Search(ctx context.Context, query string) (*Record, error) {
	var r Record
	if err := c.getJSON(ctx, "/api/v1/ledger/search", url.Values{"payload": {query}}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", req.URL.Path, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized: %s", serverError(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, serverError(body))
	}
	return body, nil
}

// serverError extracts the "error" field of a JSON error body.
func serverError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
