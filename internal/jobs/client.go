package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultSubmitError is used when a rejected submission carries no detail.
const DefaultSubmitError = "Erreur lors du démarrage du traitement"

const maxErrorBody = 64 << 10

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return e.Detail
}

// ExportKind selects one of the two downloadable artifacts.
type ExportKind string

// Export kinds.
const (
	ExportFull    ExportKind = "download"
	ExportSummary ExportKind = "download-summary"
)

// Export is a downloaded artifact. Callers must close Body.
type Export struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// ClientConfig wires a Client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Client calls the backend HTTP API.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates the base URL and builds a Client. Outbound requests are
// traced through otelhttp unless a custom HTTP client is supplied.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:    base,
		timeout: timeout,
		http:    httpClient,
		limiter: cfg.Limiter,
		logger:  logger.Named("backend"),
	}, nil
}

// Submit posts the job form to /process and returns the assigned id.
func (c *Client) Submit(ctx context.Context, req Request) (Submission, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"target_date", req.TargetDate},
		{"selected_departments", req.Departments},
	}
	for _, kw := range req.Keywords {
		fields = append(fields, [2]string{"selected_keywords", kw})
	}
	fields = append(fields, [2]string{"custom_keywords", req.CustomKeywords})
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Submission{}, fmt.Errorf("encode form field %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return Submission{}, fmt.Errorf("encode form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := c.newRequest(ctx, http.MethodPost, "process", &buf)
	if err != nil {
		return Submission{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(httpReq)
	if err != nil {
		return Submission{}, err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Submission{}, decodeBackendError(resp, DefaultSubmitError)
	}
	var sub Submission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	if strings.TrimSpace(sub.ProcessID) == "" {
		return Submission{}, errors.New("decode submission: missing process_id")
	}
	return sub, nil
}

// Progress fetches and validates one progress snapshot.
func (c *Client) Progress(ctx context.Context, processID string) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, "progress/"+url.PathEscape(processID), nil)
	if err != nil {
		return Progress{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return Progress{}, err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Progress{}, decodeBackendError(resp, "")
	}
	var p Progress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Progress{}, fmt.Errorf("invalid progress: %w", err)
	}
	return p, nil
}

// Health probes the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, "health", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return decodeBackendError(resp, "")
	}
	return nil
}

// DownloadURL is the backend URL of the full export.
func (c *Client) DownloadURL(processID string) string {
	return c.ExportURL(processID, ExportFull)
}

// SummaryURL is the backend URL of the summary export.
func (c *Client) SummaryURL(processID string) string {
	return c.ExportURL(processID, ExportSummary)
}

// ExportURL is the backend URL for kind.
func (c *Client) ExportURL(processID string, kind ExportKind) string {
	return c.resolve(string(kind) + "/" + url.PathEscape(processID))
}

// Download streams an export. The caller owns the returned body.
func (c *Client) Download(ctx context.Context, processID string, kind ExportKind) (Export, error) {
	req, err := c.newRequest(ctx, http.MethodGet, string(kind)+"/"+url.PathEscape(processID), nil)
	if err != nil {
		return Export{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return Export{}, err
	}
	if resp.StatusCode != http.StatusOK {
		defer closeBody(resp.Body)
		return Export{}, decodeBackendError(resp, "")
	}
	return Export{
		Filename:    exportFilename(resp.Header.Get("Content-Disposition"), processID, kind),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) resolve(path string) string {
	return c.base.String() + "/" + path
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("backend rate limit wait: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("backend call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
	)
	return resp, nil
}

// decodeBackendError reads a FastAPI-style {"detail": ...} body. The detail is
// either a string or a list of validation errors carrying "msg".
func decodeBackendError(resp *http.Response, fallback string) error {
	be := &BackendError{StatusCode: resp.StatusCode, Detail: fallback}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return be
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return be
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		if strings.TrimSpace(detail) != "" {
			be.Detail = detail
		}
		return be
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
		be.Detail = items[0].Msg
	}
	return be
}

func exportFilename(disposition, processID string, kind ExportKind) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	if kind == ExportSummary {
		return "boamp_summary_" + processID + ".csv"
	}
	return "boamp_" + processID + ".xlsx"
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
