// Package cloudvision is a raster OCR and logo provider on Google Cloud Vision.
package cloudvision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/inference"
	"github.com/menta2k/meishi-analyzer/pkg/logo"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// ProviderName is the metadata tag of results produced by this package
const ProviderName = "cloudvision"

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// Config holds the Cloud Vision settings. An empty CredentialsFile uses
// application default credentials.
type Config struct {
	CredentialsFile string
}

// Client runs document text detection and logo detection in one request
type Client struct {
	conn     *gvision.ImageAnnotatorClient
	annotate annotateFunc
	log      *slog.Logger
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

// NewClient dials the image annotator service
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	var copts []option.ClientOption
	if cfg.CredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	conn, err := gvision.NewImageAnnotatorClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	c := newWithAnnotator(func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return conn.BatchAnnotateImages(ctx, req)
	}, opts...)
	c.conn = conn
	return c, nil
}

func newWithAnnotator(fn annotateFunc, opts ...Option) *Client {
	c := &Client{annotate: fn, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Name returns the provider tag
func (c *Client) Name() string { return ProviderName }

// Analyze annotates a raster image. PDFs are rejected.
func (c *Client) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	if !mediaType.IsRaster() {
		return nil, client.UnsupportedMediaType(ProviderName, mediaType)
	}
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("cloudvision.analyze.start", "req_id", rid, "media_type", mediaType.String(), "bytes", len(data))

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
					{Type: visionpb.Feature_LOGO_DETECTION},
				},
			},
		},
	}

	resp, err := c.annotate(ctx, req)
	if err != nil {
		c.log.Error("cloudvision.analyze.api_error", "req_id", rid, "error", err)
		return nil, client.NewProviderError(ProviderName, "batch annotate", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, &client.ValidationError{Provider: ProviderName, Shape: "array[0]", Err: errors.New("no annotation response")}
	}
	ann := resp.GetResponses()[0]
	if ann.GetError() != nil {
		return nil, client.NewProviderError(ProviderName, "annotate image", fmt.Errorf("vision API error: %s", ann.GetError().GetMessage()))
	}

	res := Result(ann)
	c.log.Info("cloudvision.analyze.ok",
		"req_id", rid,
		"text_len", len(res.ExtractedText),
		"logos", len(res.Logos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Result converts one annotation response. Card fields are inferred from the
// recognized text since the service returns no structure.
func Result(ann *visionpb.AnnotateImageResponse) *types.AnalysisResult {
	text := strings.TrimSpace(ann.GetFullTextAnnotation().GetText())
	if text == "" && len(ann.GetTextAnnotations()) > 0 {
		text = strings.TrimSpace(ann.GetTextAnnotations()[0].GetDescription())
	}

	res := &types.AnalysisResult{
		ExtractedText: text,
		CardFields:    inference.Infer(text, types.CardFields{}),
		Logos:         make([]types.LogoCandidate, 0, len(ann.GetLogoAnnotations())),
	}
	for i, la := range ann.GetLogoAnnotations() {
		name := strings.TrimSpace(la.GetDescription())
		if name == "" {
			name = fmt.Sprintf("logo_%d", i)
		}
		res.Logos = append(res.Logos, types.LogoCandidate{
			Name:       name,
			SVG:        polygonSVG(la.GetBoundingPoly()),
			Confidence: clamp01(float64(la.GetScore())),
		})
	}
	res.SetMeta(types.MetaProvider, ProviderName)
	return res
}

// polygonSVG outlines a bounding polygon in its own viewport
func polygonSVG(poly *visionpb.BoundingPoly) string {
	vs := poly.GetVertices()
	if len(vs) == 0 {
		return logo.SVG(0, 0, nil)
	}
	minX, minY := vs[0].GetX(), vs[0].GetY()
	maxX, maxY := minX, minY
	for _, v := range vs[1:] {
		minX, maxX = min(minX, v.GetX()), max(maxX, v.GetX())
		minY, maxY = min(minY, v.GetY()), max(maxY, v.GetY())
	}
	outline := make(logo.Contour, 0, len(vs))
	for _, v := range vs {
		outline = append(outline, image.Pt(int(v.GetX()-minX), int(v.GetY()-minY)))
	}
	return logo.SVG(int(maxX-minX), int(maxY-minY), []logo.Contour{outline})
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
