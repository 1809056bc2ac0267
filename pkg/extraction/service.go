// Package extraction is the boundary of the card pipeline: it validates an
// upload, routes it to the providers and completes what they left empty.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/meishi-analyzer/internal/utils"
	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/inference"
	"github.com/menta2k/meishi-analyzer/pkg/logo"
	"github.com/menta2k/meishi-analyzer/pkg/pdftext"
	"github.com/menta2k/meishi-analyzer/pkg/processing"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// DefaultMaxFileSize is the upload limit when none is configured (10 MiB)
const DefaultMaxFileSize int64 = 10 << 20

var (
	ErrUnsupportedMediaType = client.ErrUnsupportedMediaType
	ErrEmptyDocument        = errors.New("empty document")
	ErrDocumentTooLarge     = errors.New("document too large")
)

// Analyzer produces a result for one document. *router.Router implements it.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error)
}

// Config controls the optional pipeline stages
type Config struct {
	MaxFileSize   int64
	Preprocess    bool
	EnrichLogos   bool
	ExtractPDF    bool
	SourceDetails bool
}

// DefaultConfig enables every stage except preprocessing
func DefaultConfig() Config {
	return Config{
		MaxFileSize:   DefaultMaxFileSize,
		EnrichLogos:   true,
		ExtractPDF:    true,
		SourceDetails: true,
	}
}

// Service runs the full analysis of one document per call
type Service struct {
	analyzer  Analyzer
	config    Config
	processor *processing.Processor
	detector  *logo.Detector
	log       *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithDetector replaces the logo detector used for enrichment
func WithDetector(d *logo.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithProcessor replaces the image processor used for preprocessing and metadata
func WithProcessor(p *processing.Processor) Option {
	return func(s *Service) {
		if p != nil {
			s.processor = p
		}
	}
}

// NewService creates a Service around analyzer
func NewService(analyzer Analyzer, config Config, opts ...Option) *Service {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	s := &Service{
		analyzer:  analyzer,
		config:    config,
		processor: processing.NewProcessor(),
		detector:  logo.New(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = s.detector.WithLogger(s.log)
	return s
}

// Validate checks a declared content type and the document size, returning
// the normalized media type
func (s *Service) Validate(data []byte, contentType string) (types.MediaType, error) {
	mt, ok := types.ParseMediaType(contentType)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	if int64(len(data)) > s.config.MaxFileSize {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrDocumentTooLarge,
			utils.FormatFileSize(int64(len(data))), utils.FormatFileSize(s.config.MaxFileSize))
	}
	return mt, nil
}

// Analyze validates the document, routes it and completes the result.
// Provider errors are returned unchanged.
func (s *Service) Analyze(ctx context.Context, data []byte, contentType string) (*types.AnalysisResult, error) {
	mt, err := s.Validate(data, contentType)
	if err != nil {
		return nil, err
	}
	rid := uuid.New().String()
	log := s.log.With("req_id", rid, "media_type", mt.String(), "bytes", len(data))
	start := time.Now()

	routed := data
	if s.config.Preprocess && mt.IsRaster() {
		if out, perr := s.processor.Preprocess(data, mt); perr != nil {
			log.Warn("extraction.preprocess_failed", "error", perr)
		} else {
			routed = out
		}
	}

	result, err := s.analyzer.Analyze(ctx, routed, mt)
	if err != nil {
		log.Error("extraction.analyze_failed", "error", err)
		return nil, err
	}
	result = result.Clone()

	if result.ExtractedText == "" && mt.IsPDF() && s.config.ExtractPDF {
		text, terr := pdftext.Extract(data)
		if terr != nil {
			log.Warn("extraction.pdf_text_failed", "error", terr)
		}
		result.ExtractedText = text
	}

	if result.CardFields.Name == "" && result.ExtractedText != "" {
		result.CardFields = inference.Infer(result.ExtractedText, result.CardFields)
	}

	if result.Logos == nil {
		result.Logos = []types.LogoCandidate{}
	}
	if len(result.Logos) == 0 && mt.IsRaster() && s.config.EnrichLogos {
		result.Logos = s.detector.DetectLogos(data)
		log.Debug("extraction.logos_detected", "count", len(result.Logos))
	}

	if s.config.SourceDetails {
		if src := s.source(data, mt); src != nil {
			result.SetMeta(types.MetaSource, src)
		}
	}

	log.Info("extraction.done",
		"provider", result.Provider(),
		"has_name", result.CardFields.Name != "",
		"logos", len(result.Logos),
		"size", utils.FormatFileSize(int64(len(data))),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// DetectLogos runs the logo detector on a raster image
func (s *Service) DetectLogos(data []byte) []types.LogoCandidate {
	return s.detector.DetectLogos(data)
}

// InferFields fills the empty attributes of existing from text
func (s *Service) InferFields(text string, existing types.CardFields) types.CardFields {
	return inference.Infer(text, existing)
}

// source describes the original document; nil when it cannot be read
func (s *Service) source(data []byte, mt types.MediaType) map[string]any {
	if mt.IsPDF() {
		info, err := pdftext.ReadInfo(data)
		if err != nil {
			return nil
		}
		return info.Map()
	}
	md, err := s.processor.Metadata(data)
	if err != nil {
		return nil
	}
	return map[string]any{
		"width":        md.Width,
		"height":       md.Height,
		"format":       md.Format,
		"aspect_ratio": md.AspectRatio,
	}
}
