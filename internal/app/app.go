// Package app wires configured providers into an Analyzer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/menta2k/meishi-analyzer"
	"github.com/menta2k/meishi-analyzer/internal/config"
	"github.com/menta2k/meishi-analyzer/pkg/acrobat"
	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/cloudvision"
	"github.com/menta2k/meishi-analyzer/pkg/extraction"
	"github.com/menta2k/meishi-analyzer/pkg/gemini"
	"github.com/menta2k/meishi-analyzer/pkg/logo"
	"github.com/menta2k/meishi-analyzer/pkg/ollama"
	"github.com/menta2k/meishi-analyzer/pkg/openai"
)

// App owns the analyzer and the provider resources behind it
type App struct {
	Analyzer *meishi.Analyzer
	Config   *config.Config
	Logger   *slog.Logger

	closers []io.Closer
}

// New builds every provider once from cfg. Missing credentials fail here,
// never at request time.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	document, err := DocumentProvider(cfg.Document, logger)
	if err != nil {
		return nil, err
	}
	vision, err := a.visionProvider(ctx, cfg.Vision)
	if err != nil {
		return nil, err
	}

	analyzer, err := meishi.New(document, vision,
		meishi.WithLogger(logger),
		meishi.WithPipelineConfig(PipelineConfig(cfg)),
		meishi.WithLogoConfig(LogoConfig(cfg.Logo)),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Analyzer = analyzer

	docName := "none"
	if document != nil {
		docName = document.Name()
	}
	logger.Info("app.ready", "document_provider", docName, "vision_provider", vision.Name())
	return a, nil
}

// Close releases provider connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// DocumentProvider returns the document-extraction provider, or nil when no
// API key is configured
func DocumentProvider(cfg config.DocumentConfig, logger *slog.Logger) (client.Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	return acrobat.NewClient(acrobat.Config{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	}, acrobat.WithLogger(logger))
}

func (a *App) visionProvider(ctx context.Context, cfg config.VisionConfig) (client.Provider, error) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxImageDim: cfg.MaxImageDim,
			Timeout:     cfg.Timeout,
		}, openai.WithLogger(a.Logger))

	case config.BackendGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       modelFor(cfg.Model, gemini.DefaultModel),
			Temperature: float32(cfg.Temperature),
		}, gemini.WithLogger(a.Logger))

	case config.BackendOllama:
		return ollama.NewClient(ollama.Config{
			URL:         cfg.OllamaURL,
			Model:       modelFor(cfg.Model, ollama.DefaultModel),
			Temperature: cfg.Temperature,
			MaxImageDim: cfg.MaxImageDim,
			Timeout:     cfg.Timeout,
		}, ollama.WithLogger(a.Logger))

	case config.BackendCloudVision:
		c, err := cloudvision.NewClient(ctx, cloudvision.Config{CredentialsFile: cfg.CredentialsFile},
			cloudvision.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		return c, nil
	}
	return nil, &client.ConfigurationError{Provider: "app", Setting: fmt.Sprintf("vision.backend %q", cfg.Backend)}
}

// modelFor keeps the OpenAI default model name from leaking into other backends
func modelFor(model, fallback string) string {
	if model == "" || model == openai.DefaultModel {
		return fallback
	}
	return model
}

// PipelineConfig maps the pipeline and logo sections onto the boundary stages
func PipelineConfig(cfg *config.Config) extraction.Config {
	return extraction.Config{
		MaxFileSize:   cfg.Pipeline.MaxFileSize,
		Preprocess:    cfg.Pipeline.Preprocess,
		EnrichLogos:   cfg.Logo.Enabled,
		ExtractPDF:    cfg.Pipeline.PDFText,
		SourceDetails: cfg.Pipeline.Source,
	}
}

// LogoConfig overlays the configured thresholds on the detector defaults
func LogoConfig(cfg config.LogoConfig) logo.Config {
	lc := logo.DefaultConfig()
	lc.Threshold = uint8(cfg.Threshold)
	lc.MinArea, lc.MaxArea = cfg.MinArea, cfg.MaxArea
	lc.MinAspect, lc.MaxAspect = cfg.MinAspect, cfg.MaxAspect
	lc.CannyLow, lc.CannyHigh = cfg.CannyLow, cfg.CannyHigh
	return lc
}
