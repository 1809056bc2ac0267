// Package logo finds compact dark marks on a card image and traces them into
// SVG outlines.
package logo

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/menta2k/meishi-analyzer/pkg/processing"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Config holds the thresholds used by the detector
type Config struct {
	Threshold     uint8   // gray level at or below which a pixel is ink
	MinArea       float64 // exclusive bounds on contour area, in pixels²
	MaxArea       float64
	MinAspect     float64 // exclusive bounds on bounding box width/height
	MaxAspect     float64
	CannyLow      float64
	CannyHigh     float64
	MinPathPoints int // edge contours need more points than this to be drawn
	AreaScale     float64
	SquareMin     float64 // aspect range that earns SquareBonus
	SquareMax     float64
	SquareBonus   float64
}

// DefaultConfig returns the thresholds tuned for scanned business cards
func DefaultConfig() Config {
	return Config{
		Threshold:     200,
		MinArea:       1000,
		MaxArea:       50000,
		MinAspect:     0.5,
		MaxAspect:     2.0,
		CannyLow:      50,
		CannyHigh:     150,
		MinPathPoints: 4,
		AreaScale:     10000,
		SquareMin:     0.8,
		SquareMax:     1.2,
		SquareBonus:   1.2,
	}
}

// Detector finds logo regions in raster images. It is safe for concurrent use.
type Detector struct {
	config Config
	logger *slog.Logger
}

// New creates a new Detector with default configuration
func New() *Detector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Detector with custom configuration
func NewWithConfig(config Config) *Detector {
	return &Detector{config: config, logger: slog.Default()}
}

// WithLogger returns a copy of d that logs to logger
func (d *Detector) WithLogger(logger *slog.Logger) *Detector {
	out := *d
	if logger != nil {
		out.logger = logger
	}
	return &out
}

// Region is a retained contour with its bounding box
type Region struct {
	Bounds      image.Rectangle
	ContourArea float64
}

// Aspect returns the bounding box width over height
func (r Region) Aspect() float64 {
	if r.Bounds.Dy() == 0 {
		return 0
	}
	return float64(r.Bounds.Dx()) / float64(r.Bounds.Dy())
}

// DetectLogos decodes data and returns its logo candidates. It never fails:
// undecodable input or any processing fault yields an empty list.
func (d *Detector) DetectLogos(data []byte) (logos []types.LogoCandidate) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("logo.detect_panic", "panic", fmt.Sprint(r))
			logos = []types.LogoCandidate{}
		}
	}()

	img, err := processing.DecodeBytes(data)
	if err != nil {
		d.logger.Debug("logo.decode_failed", "error", err)
		return []types.LogoCandidate{}
	}
	return d.DetectInImage(img)
}

// DetectInImage returns the logo candidates of an already decoded image
func (d *Detector) DetectInImage(img image.Image) []types.LogoCandidate {
	gray := GrayPlane(img)
	regions := d.FindRegions(gray)

	logos := make([]types.LogoCandidate, 0, len(regions))
	for i, r := range regions {
		w, h := r.Bounds.Dx(), r.Bounds.Dy()
		logos = append(logos, types.LogoCandidate{
			Name:       fmt.Sprintf("logo_%d", i),
			SVG:        d.Vectorize(gray.Crop(r.Bounds)),
			Confidence: d.Confidence(float64(w*h), r.Aspect()),
		})
	}
	d.logger.Debug("logo.detected", "count", len(logos), "width", gray.Width, "height", gray.Height)
	return logos
}

// FindRegions thresholds gray and keeps the external contours whose area and
// aspect ratio fall strictly inside the configured bounds
func (d *Detector) FindRegions(gray *Plane) []Region {
	mask := Threshold(gray, d.config.Threshold)
	var regions []Region
	for _, c := range FindExternalContours(mask, gray.Width, gray.Height) {
		area := c.Area()
		if area <= d.config.MinArea || area >= d.config.MaxArea {
			continue
		}
		r := Region{Bounds: c.Bounds(), ContourArea: area}
		if aspect := r.Aspect(); aspect <= d.config.MinAspect || aspect >= d.config.MaxAspect {
			continue
		}
		regions = append(regions, r)
	}
	return regions
}

// Vectorize traces the edges of a region into an SVG document sized to it
func (d *Detector) Vectorize(region *Plane) string {
	edges := Canny(region, d.config.CannyLow, d.config.CannyHigh)
	var paths []Contour
	for _, c := range FindExternalContours(edges, region.Width, region.Height) {
		if len(c) > d.config.MinPathPoints {
			paths = append(paths, c)
		}
	}
	return SVG(region.Width, region.Height, paths)
}

// Confidence scores a region from its bounding box area and aspect ratio.
// The result is always within [0, 1].
func (d *Detector) Confidence(area, aspect float64) float64 {
	if area <= 0 || d.config.AreaScale <= 0 {
		return 0
	}
	c := min(1.0, area/d.config.AreaScale)
	if aspect > d.config.SquareMin && aspect < d.config.SquareMax {
		c *= d.config.SquareBonus
	}
	return max(0, min(1.0, c))
}

// GrayPlane converts img to luminance
func GrayPlane(img image.Image) *Plane {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	p := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < p.Width; x++ {
			p.Pix[y*p.Width+x] = row[x*4]
		}
	}
	return p
}
