// Package gemini is a vision-language provider on the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/schema"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

const (
	// ProviderName is the metadata tag of results produced by this package
	ProviderName = "gemini"
	// DefaultModel is used when no model is configured
	DefaultModel = "gemini-2.0-flash"
)

// generator is the part of genai.Models the client uses
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the Gemini settings
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Client calls Gemini with the card embedded inline. It is safe for concurrent use.
type Client struct {
	models generator
	model  string
	temp   float32
	log    *slog.Logger
}

// Client implements client.Provider
var _ client.Provider = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// NewClient creates a Gemini API client. The API key is required.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &client.ConfigurationError{Provider: ProviderName, Setting: "GEMINI_API_KEY"}
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newWithGenerator(gc.Models, cfg, opts...), nil
}

func newWithGenerator(g generator, cfg Config, opts ...Option) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := &Client{models: g, model: cfg.Model, temp: cfg.Temperature, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider tag
func (c *Client) Name() string { return ProviderName }

// Analyze sends the document to Gemini in JSON response mode
func (c *Client) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	if !mediaType.IsPDF() && !mediaType.IsRaster() {
		return nil, client.UnsupportedMediaType(ProviderName, mediaType)
	}
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("gemini.analyze.start", "req_id", rid, "model", c.model,
		"media_type", mediaType.String(), "bytes", len(data))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(schema.CardPrompt),
			genai.NewPartFromBytes(data, mediaType.String()),
		}, genai.RoleUser),
	}
	temp := c.temp
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.log.Error("gemini.analyze.api_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, client.NewProviderError(ProviderName, "generate content", err)
	}
	if resp == nil {
		return nil, &client.ValidationError{Provider: ProviderName, Shape: "null", Err: fmt.Errorf("empty response")}
	}

	res, err := schema.DecodeResult(ProviderName, resp.Text())
	if err != nil {
		c.log.Error("gemini.analyze.schema_validation_failed", "req_id", rid, "error", err)
		return nil, err
	}
	res.SetMeta("model", c.model)

	c.log.Info("gemini.analyze.ok",
		"req_id", rid,
		"has_name", res.CardFields.Name != "",
		"logos", len(res.Logos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
