package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Preprocessing strengths applied before a raster image is sent to a provider
const (
	DefaultContrast = 20.0 // percent, see imaging.AdjustContrast
	DefaultSharpen  = 0.5  // gaussian sigma, see imaging.Sharpen
	DefaultQuality  = 90   // jpeg / lossy webp
	DefaultMaxDim   = 2048 // longest side sent to vision models
)

// Processor handles raster image operations shared by providers and the logo detector
type Processor struct {
	Contrast float64
	Sharpen  float64
	Quality  int
}

// NewProcessor creates a new image processor with default settings
func NewProcessor() *Processor {
	return &Processor{
		Contrast: DefaultContrast,
		Sharpen:  DefaultSharpen,
		Quality:  DefaultQuality,
	}
}

// DecodeBytes decodes PNG, JPEG or WebP data
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image: empty input")
	}
	// Try standard image.Decode first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	// Fallback: explicit WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// DecodeBytes decodes raster data
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	return DecodeBytes(data)
}

// Encode writes img in the format of mediaType
func (p *Processor) Encode(img image.Image, mediaType types.MediaType) ([]byte, error) {
	var buf bytes.Buffer
	switch mediaType {
	case types.MediaTypePNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case types.MediaTypeWEBP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(p.quality())}); err != nil {
			return nil, err
		}
	case types.MediaTypeJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality()}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("image: cannot encode %s", mediaType)
	}
	return buf.Bytes(), nil
}

// Preprocess raises contrast and sharpens a raster card image, re-encoding it in
// its own format. PDFs are returned unchanged.
func (p *Processor) Preprocess(data []byte, mediaType types.MediaType) ([]byte, error) {
	if !mediaType.IsRaster() {
		return data, nil
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	out := imaging.AdjustContrast(img, p.Contrast)
	if p.Sharpen > 0 {
		out = imaging.Sharpen(out, p.Sharpen)
	}
	return p.Encode(out, mediaType)
}

// PrepareImageForModel downsizes data so its longest side is at most maxDim and
// returns it base64 encoded together with the media type of the encoding.
// Images already within bounds are passed through untouched.
func (p *Processor) PrepareImageForModel(data []byte, mediaType types.MediaType, maxDim int) (string, types.MediaType, error) {
	if !mediaType.IsRaster() {
		return "", "", fmt.Errorf("image: %s is not a raster type", mediaType)
	}
	if maxDim <= 0 {
		return base64.StdEncoding.EncodeToString(data), mediaType, nil
	}

	img, err := DecodeBytes(data)
	if err != nil {
		return "", "", err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return base64.StdEncoding.EncodeToString(data), mediaType, nil
	}
	if w >= h {
		img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
	}

	// webp goes out as jpeg, every model backend accepts it
	outType := mediaType
	if outType == types.MediaTypeWEBP {
		outType = types.MediaTypeJPEG
	}
	encoded, err := p.Encode(img, outType)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(encoded), outType, nil
}

// ImageMetadata describes the pixel dimensions of a raster image
type ImageMetadata struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Metadata reads dimensions without decoding the full image when possible
func (p *Processor) Metadata(data []byte) (ImageMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		img, derr := DecodeBytes(data)
		if derr != nil {
			return ImageMetadata{}, derr
		}
		b := img.Bounds()
		cfg.Width, cfg.Height, format = b.Dx(), b.Dy(), "webp"
	}
	md := ImageMetadata{Width: cfg.Width, Height: cfg.Height, Format: strings.ToLower(format)}
	if cfg.Height > 0 {
		md.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return md, nil
}

func (p *Processor) quality() int {
	if p.Quality <= 0 || p.Quality > 100 {
		return DefaultQuality
	}
	return p.Quality
}
