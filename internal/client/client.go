// Package client provides an HTTP client for the content-generation backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
)

// Endpoint paths relative to the server URL.
const (
	PathGenerateContent = "/user/generate-content"
	PathLatestSyllabus  = "/user/latest-syllabus"
)

// Client talks to the generation backend over REST.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request timings in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("server error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server error: %d %s - %s", e.Status, http.StatusText(e.Status), body)
}

// do sends req and decodes a JSON response into result (which may be nil).
func (c *Client) do(req *http.Request, result any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// GenerateRequest is a content-generation submission.
type GenerateRequest struct {
	File       io.Reader
	FileName   string
	ClassCount int
	SocketID   string
}

// GenerateResponse is the backend acknowledgment. Message is informational
// only; completion arrives later over the realtime channel.
type GenerateResponse struct {
	Message string `json:"message,omitempty"`
}

// GenerateContent uploads a PDF and starts a generation job whose progress is
// reported on the realtime channel identified by req.SocketID.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (resp *GenerateResponse, err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpJobSubmit, start, err) }()

	if req.File == nil {
		return nil, fmt.Errorf("generate content: no file")
	}
	name := req.FileName
	if name == "" {
		name = "upload.pdf"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdfFile", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.WriteField("noOfClasses", strconv.Itoa(req.ClassCount)); err != nil {
		return nil, fmt.Errorf("write noOfClasses: %w", err)
	}
	if err := mw.WriteField("socketId", req.SocketID); err != nil {
		return nil, fmt.Errorf("write socketId: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathGenerateContent, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var result GenerateResponse
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LatestSyllabus returns the flat result of the most recent completed job.
func (c *Client) LatestSyllabus(ctx context.Context) (items []syllabus.ResultItem, err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpResultFetch, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathLatestSyllabus, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var result struct {
		Syllabus []syllabus.ResultItem `json:"syllabus"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Syllabus, nil
}
