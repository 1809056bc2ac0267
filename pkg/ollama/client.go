// Package ollama is a vision-language provider on a local Ollama server.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/processing"
	"github.com/menta2k/meishi-analyzer/pkg/schema"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// ProviderName is the metadata tag of results produced by this package
const ProviderName = "ollama"

// Defaults
const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "qwen2.5vl:7b"
	DefaultTimeout = 300 * time.Second
)

// Config holds the Ollama settings
type Config struct {
	URL         string
	Model       string
	Temperature float64
	MaxImageDim int
	Timeout     time.Duration
}

// Client wraps the Ollama API client
type Client struct {
	client    *api.Client
	cfg       Config
	processor *processing.Processor
	log       *slog.Logger
}

// Client implements client.Provider
var _ client.Provider = (*Client)(nil)

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient replaces the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// NewClient creates a new Ollama client. Only the scheme and host of the URL
// are used, so ".../api/chat" is accepted too.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil || parsedURL.Host == "" {
		return nil, &client.ConfigurationError{Provider: ProviderName, Setting: "OLLAMA_URL"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = processing.DefaultMaxDim
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	o := clientOptions{httpClient: http.DefaultClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{
		// environment (OLLAMA_HOST) is ignored
		client:    api.NewClient(baseURL, o.httpClient),
		cfg:       cfg,
		processor: processing.NewProcessor(),
		log:       o.logger,
	}, nil
}

// Name returns the provider tag
func (c *Client) Name() string { return ProviderName }

// Analyze sends a raster card image to the model in JSON mode. PDFs are rejected.
func (c *Client) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	if !mediaType.IsRaster() {
		return nil, client.UnsupportedMediaType(ProviderName, mediaType)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("ollama.analyze.start", "req_id", rid, "model", c.cfg.Model,
		"media_type", mediaType.String(), "bytes", len(data))

	imgB64, _, err := c.processor.PrepareImageForModel(data, mediaType, c.cfg.MaxImageDim)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "prepare image", err)
	}
	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "prepare image", err)
	}

	content, err := c.chat(ctx, imgBytes)
	if err != nil {
		c.log.Error("ollama.analyze.chat_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	res, err := schema.DecodeResult(ProviderName, content)
	if err != nil {
		c.log.Error("ollama.analyze.schema_validation_failed", "req_id", rid, "error", err)
		return nil, err
	}
	res.SetMeta("model", c.cfg.Model)

	c.log.Info("ollama.analyze.ok",
		"req_id", rid,
		"has_name", res.CardFields.Name != "",
		"logos", len(res.Logos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) chat(ctx context.Context, img []byte) (string, error) {
	streamFalse := false
	req := &api.ChatRequest{
		Model: c.cfg.Model,
		Messages: []api.Message{
			{Role: "system", Content: schema.CardPrompt},
			{
				Role:    "user",
				Content: "Analyze this business card.",
				Images:  []api.ImageData{api.ImageData(img)},
			},
		},
		Stream:  &streamFalse,
		Format:  json.RawMessage(`"json"`),
		Options: modelOptions(c.cfg.Model, c.cfg.Temperature),
	}

	var responseContent strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", client.NewProviderError(ProviderName, "chat", err)
	}
	if strings.TrimSpace(responseContent.String()) == "" {
		return "", &client.ValidationError{Provider: ProviderName, Shape: "empty content", Err: fmt.Errorf("empty response from ollama")}
	}
	return responseContent.String(), nil
}

// modelOptions returns sampling options, with extra tuning for MiniCPM-V 4.x
func modelOptions(model string, temperature float64) map[string]any {
	options := map[string]any{"temperature": temperature}

	modelLower := strings.ToLower(model)
	if strings.Contains(modelLower, "minicpm-v4") ||
		strings.Contains(modelLower, "minicpm-v-4") ||
		strings.Contains(modelLower, "minicpmv4") {
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}
