// Package openai is a vision-language provider for OpenAI-compatible chat
// completion servers, including api.openai.com and a local llama.cpp server.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/processing"
	"github.com/menta2k/meishi-analyzer/pkg/schema"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// ProviderName is the metadata tag of results produced by this package
const ProviderName = "openai"

// Defaults
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

// userInstruction accompanies the card image in the user turn
const userInstruction = "Analyze this business card."

// Config holds the settings of a chat completion backend
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxImageDim int
	Timeout     time.Duration
}

// Client talks to a chat completion endpoint. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	processor  *processing.Processor
	log        *slog.Logger
}

// Message is an OpenAI-compatible chat message
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

// ContentPart is one element of a multi-part message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *File     `json:"file,omitempty"`
}

// ImageURL carries an image as a data URL
type ImageURL struct {
	URL string `json:"url"`
}

// File carries a document as a data URL
type File struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// ResponseFormat constrains the completion output
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
}

// ChatCompletionResponse is an OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
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

// NewClient creates a new chat completion client. An API key is required when
// talking to api.openai.com; self-hosted servers may run without one.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, &client.ConfigurationError{Provider: ProviderName, Setting: "OPENAI_BASE_URL"}
	}
	if u.Host == "api.openai.com" && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &client.ConfigurationError{Provider: ProviderName, Setting: "OPENAI_API_KEY"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = processing.DefaultMaxDim
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		processor:  processing.NewProcessor(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the provider tag
func (c *Client) Name() string { return ProviderName }

// Analyze sends the card to the model and decodes its JSON answer
func (c *Client) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("openai.analyze.start", "req_id", rid, "model", c.cfg.Model,
		"media_type", mediaType.String(), "bytes", len(data))

	part, err := c.documentPart(data, mediaType)
	if err != nil {
		return nil, err
	}

	req := ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: schema.CardPrompt},
			{Role: "user", Content: []ContentPart{{Type: "text", Text: userInstruction}, part}},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	body, err := c.sendRequest(ctx, "/chat/completions", req)
	if err != nil {
		c.log.Error("openai.analyze.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	text, err := completionText(body)
	if err != nil {
		c.log.Error("openai.analyze.decode_error", "req_id", rid, "error", err, "raw_bytes", len(body))
		return nil, err
	}

	res, err := schema.DecodeResult(ProviderName, text)
	if err != nil {
		c.log.Error("openai.analyze.schema_validation_failed", "req_id", rid, "error", err)
		return nil, err
	}
	res.SetMeta("model", c.cfg.Model)

	c.log.Info("openai.analyze.ok",
		"req_id", rid,
		"has_name", res.CardFields.Name != "",
		"text_len", len(res.ExtractedText),
		"logos", len(res.Logos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) documentPart(data []byte, mediaType types.MediaType) (ContentPart, error) {
	switch {
	case mediaType.IsPDF():
		return ContentPart{
			Type: "file",
			File: &File{
				Filename: "card.pdf",
				FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
			},
		}, nil
	case mediaType.IsRaster():
		imgB64, outType, err := c.processor.PrepareImageForModel(data, mediaType, c.cfg.MaxImageDim)
		if err != nil {
			return ContentPart{}, client.NewProviderError(ProviderName, "prepare image", err)
		}
		return ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:" + outType.String() + ";base64," + imgB64},
		}, nil
	}
	return ContentPart{}, client.UnsupportedMediaType(ProviderName, mediaType)
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, client.NewProviderError(ProviderName, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, client.NewProviderError(ProviderName, "send request",
			fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

// completionText extracts the first choice's text, handling both string and
// array content formats
func completionText(body []byte) (string, error) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &client.ValidationError{
			Provider: ProviderName,
			Shape:    fmt.Sprintf("non-json(%d bytes)", len(body)),
			Err:      fmt.Errorf("failed to parse response: %w", err),
		}
	}
	if len(resp.Choices) == 0 {
		return "", &client.ValidationError{Provider: ProviderName, Shape: "no choices", Err: fmt.Errorf("no choices in response")}
	}

	var text string
	switch content := resp.Choices[0].Message.Content.(type) {
	case string:
		text = content
	case []any:
		for _, item := range content {
			if partMap, ok := item.(map[string]any); ok {
				if t, ok := partMap["text"].(string); ok && t != "" {
					text = t
					break
				}
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", &client.ValidationError{Provider: ProviderName, Shape: "empty content", Err: fmt.Errorf("empty response from model")}
	}
	return text, nil
}
