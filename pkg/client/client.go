// Package client provides the CyberSentinel Go SDK for submitting threat
// scenarios, downloading reports and browsing case history.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout covers a full analysis, which may wait up to two minutes
// on the completion service.
const DefaultTimeout = 150 * time.Second

// Record is a completed threat analysis as returned by the API.
type Record struct {
	CaseID          string   `json:"case_id"`
	Scenario        string   `json:"scenario"`
	ThreatType      string   `json:"threat_type"`
	Severity        string   `json:"severity"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	ContextSources  []string `json:"context_sources"`
	Timestamp       string   `json:"timestamp"`
	TokenUsage      int      `json:"token_usage"`
}

// HealthReport is the body of GET /api/health.
type HealthReport struct {
	Status           string `json:"status"`
	Inference        string `json:"inference"`
	Ollama           string `json:"ollama"`
	Model            string `json:"model"`
	VectorDB         string `json:"vector_db"`
	DocumentsIndexed int    `json:"documents_indexed"`
}

// CaseVerdict is the body of GET /api/cases/:id/verify.
type CaseVerdict struct {
	CaseID          string `json:"case_id"`
	Intact          bool   `json:"intact"`
	StoredDigest    string `json:"stored_digest"`
	AnalyzedDigest  string `json:"analyzed_digest"`
	Reports         int    `json:"reports"`
	MatchingReports int    `json:"matching_reports"`
	Reason          string `json:"reason"`
}

// CaseList is one page of case history.
type CaseList struct {
	Cases  []Record `json:"cases"`
	Count  int      `json:"count"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cybersentinel API %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("cybersentinel API %d: %s", e.StatusCode, e.Message)
}

// IsServiceUnavailable reports whether err means the server could not reach
// its completion service.
func IsServiceUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the CyberSentinel SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	cache       *caseCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithBearerToken attaches a token to every request, for deployments that
// put the API behind an authenticating proxy.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCacheTTL caches GetCase results. Stored cases never change, so any
// TTL is safe; it only bounds memory.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newCaseCache(ttl)
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed certificate.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: c.httpClient.Timeout,
		}
		return nil
	}
}

// New creates a Client for the API at base, e.g. "http://localhost:8000".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Analyze submits scenario and returns the finished analysis.
func (c *Client) Analyze(ctx context.Context, scenario string) (*Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze", map[string]string{"scenario": scenario}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GenerateReport renders rec on the server and copies the PDF to w. It
// returns the server-supplied file name.
func (c *Client) GenerateReport(ctx context.Context, rec *Record, w io.Writer) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate-report", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.download(req, rec.CaseID, w)
}

// CaseReport renders a stored case and copies the PDF to w.
func (c *Client) CaseReport(ctx context.Context, caseID string, w io.Writer) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/cases/"+url.PathEscape(caseID)+"/report", nil)
	if err != nil {
		return "", err
	}
	return c.download(req, caseID, w)
}

// Health returns the server's dependency status.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var h HealthReport
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	// Older servers only send the ollama key.
	if h.Inference == "" {
		h.Inference = h.Ollama
	}
	return &h, nil
}

// GetCase fetches a stored analysis by case id.
func (c *Client) GetCase(ctx context.Context, caseID string) (*Record, error) {
	if c.cache != nil {
		if rec, ok := c.cache.get(caseID); ok {
			return rec, nil
		}
	}

	var rec Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/cases/"+url.PathEscape(caseID), nil, &rec); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.set(caseID, &rec)
	}
	return &rec, nil
}

// ListCases returns one page of case history, newest first. Zero values
// use the server defaults.
// VerifyCase checks a stored case against its audit trail.
func (c *Client) VerifyCase(ctx context.Context, caseID string) (*CaseVerdict, error) {
	var v CaseVerdict
	if err := c.doJSON(ctx, http.MethodGet, "/api/cases/"+url.PathEscape(caseID)+"/verify", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) ListCases(ctx context.Context, limit, offset int) (*CaseList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/cases"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list CaseList
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ── internals ───────────────────────────────────────────────────────────────

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) download(req *http.Request, caseID string, w io.Writer) (string, error) {
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", decodeAPIError(resp.StatusCode, body)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("copy report: %w", err)
	}

	name := "cybersentinel_report_" + caseID + ".pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return name, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Detail = payload.Detail
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}

// --- simple in-memory case cache ---

type cacheEntry struct {
	rec       *Record
	expiresAt time.Time
}

type caseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newCaseCache(ttl time.Duration) *caseCache {
	return &caseCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (cc *caseCache) get(key string) (*Record, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	e, ok := cc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	cp := *e.rec
	return &cp, true
}

func (cc *caseCache) set(key string, rec *Record) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cp := *rec
	cc.entries[key] = &cacheEntry{rec: &cp, expiresAt: time.Now().Add(cc.ttl)}
}
