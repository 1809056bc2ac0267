// Package acrobat is the document-extraction provider: it sends PDFs to an
// Acrobat-style extraction service and maps the returned elements to card
// fields, logo candidates and layout metadata.
package acrobat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/schema"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// ProviderName is the metadata tag of results produced by this package
const ProviderName = "acrobat"

// DefaultEndpoint is the extraction endpoint used when none is configured
const DefaultEndpoint = "https://api.adobe.com/pdfservices/extract"

// Config holds the settings of the extraction service
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client calls the extraction service. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// NewClient creates a new extraction client. The API key is required.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &client.ConfigurationError{Provider: ProviderName, Setting: "ACROBAT_API_KEY"}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the provider tag
func (c *Client) Name() string { return ProviderName }

// Analyze extracts a PDF. Any other media type is rejected.
func (c *Client) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	if !mediaType.IsPDF() {
		return nil, client.UnsupportedMediaType(ProviderName, mediaType)
	}
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("acrobat.analyze.start", "req_id", rid, "bytes", len(data))

	raw, err := c.extract(ctx, data)
	if err != nil {
		c.log.Error("acrobat.analyze.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		c.log.Error("acrobat.analyze.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, err
	}

	res := doc.Result()
	c.log.Info("acrobat.analyze.ok",
		"req_id", rid,
		"elements", len(doc.TextElements),
		"images", len(doc.Images),
		"logos", len(res.Logos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) extract(ctx context.Context, data []byte) ([]byte, error) {
	body := map[string]any{
		"input":            base64.StdEncoding.EncodeToString(data),
		"input_encoding":   "base64",
		"output_format":    "json",
		"extract_images":   true,
		"extract_text":     true,
		"extract_metadata": true,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "post", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("acrobat response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, client.NewProviderError(ProviderName, "post",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	}
	return raw, nil
}

// decodeDocument validates and decodes an extraction response
func decodeDocument(raw []byte) (*Document, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &client.ValidationError{
			Provider: ProviderName,
			Shape:    fmt.Sprintf("non-json(%d bytes)", len(raw)),
			Err:      err,
		}
	}
	s, err := documentSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(v); err != nil {
		return nil, &client.ValidationError{Provider: ProviderName, Shape: schema.Shape(v), Err: err}
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &client.ValidationError{Provider: ProviderName, Shape: schema.Shape(v), Err: err}
	}
	return &doc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
