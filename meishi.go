// Package meishi provides business card analysis: contact fields, raw text
// and logo outlines from a PDF or a card photo.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/meishi-analyzer"
//		"github.com/menta2k/meishi-analyzer/pkg/acrobat"
//		"github.com/menta2k/meishi-analyzer/pkg/openai"
//	)
//
//	func main() {
//		doc, err := acrobat.NewClient(acrobat.Config{APIKey: "..."})
//		if err != nil {
//			log.Fatal(err)
//		}
//		vis, err := openai.NewClient(openai.Config{APIKey: "..."})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		analyzer, err := meishi.New(doc, vis)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := analyzer.AnalyzeFile(context.Background(), "card.pdf")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(result.CardFields.Name, result.CardFields.Email)
//	}
//
// PDFs go to the document-extraction provider first. When it fails, the
// vision-language provider's answer is used as is; when it succeeds without
// a name or without text, the two answers are merged field by field with the
// document provider winning. Card photos go to the vision-language provider
// only.
//
// After routing, empty PDF text is filled from the PDF itself, empty names
// trigger a line and pattern based inference over the text, and photos with
// no logos get the candidates of the local logo detector.
package meishi

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/menta2k/meishi-analyzer/internal/utils"
	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/extraction"
	"github.com/menta2k/meishi-analyzer/pkg/logo"
	"github.com/menta2k/meishi-analyzer/pkg/router"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Version of the meishi analyzer library
const Version = "0.3.0"

// Analyzer provides a high-level interface for card analysis
type Analyzer struct {
	router  *router.Router
	service *extraction.Service
}

type options struct {
	logger   *slog.Logger
	config   extraction.Config
	detector *logo.Detector
}

// Option configures an Analyzer
type Option func(*options)

// WithLogger sets the logger shared by every stage
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPipelineConfig replaces the boundary stage settings
func WithPipelineConfig(config extraction.Config) Option {
	return func(o *options) { o.config = config }
}

// WithLogoConfig sets the thresholds of the logo detector
func WithLogoConfig(config logo.Config) Option {
	return func(o *options) { o.detector = logo.NewWithConfig(config) }
}

// New creates an Analyzer. vision is required; document may be nil.
func New(document, vision client.Provider, opts ...Option) (*Analyzer, error) {
	o := options{logger: slog.Default(), config: extraction.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r, err := router.New(document, vision, router.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		router: r,
		service: extraction.NewService(r, o.config,
			extraction.WithLogger(o.logger),
			extraction.WithDetector(o.detector),
		),
	}, nil
}

// Analyze runs the whole pipeline on a document of the declared content type
func (a *Analyzer) Analyze(ctx context.Context, data []byte, contentType string) (*types.AnalysisResult, error) {
	return a.service.Analyze(ctx, data, contentType)
}

// AnalyzeFile reads a card file, detects its media type and analyzes it
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*types.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card file: %w", err)
	}
	return a.Analyze(ctx, data, utils.DetectMediaType(path, data).String())
}

// DetectLogos runs only the local logo detector on a raster image
func (a *Analyzer) DetectLogos(data []byte) []types.LogoCandidate {
	return a.service.DetectLogos(data)
}

// InferFields fills the empty fields of existing from raw card text
func (a *Analyzer) InferFields(text string, existing types.CardFields) types.CardFields {
	return a.service.InferFields(text, existing)
}

// Route returns the providers that serve a media type
func (a *Analyzer) Route(mediaType types.MediaType) router.Route {
	return a.router.Select(mediaType)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
