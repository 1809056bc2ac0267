package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// createTestImage creates a gray card with a dark block in its upper left corner
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/4 && y < height/4 {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			} else {
				img.Set(x, y, color.RGBA{200, 200, 200, 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewProcessor(t *testing.T) {
	p := NewProcessor()
	if p == nil {
		t.Fatal("NewProcessor() returned nil")
	}
	if p.Contrast != DefaultContrast {
		t.Errorf("Expected contrast %v, got %v", DefaultContrast, p.Contrast)
	}
	if p.quality() != DefaultQuality {
		t.Errorf("Expected quality %d, got %d", DefaultQuality, p.quality())
	}
}

func TestDecodeBytes(t *testing.T) {
	data := encodePNG(t, createTestImage(40, 20))
	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("Expected 40x20, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	if _, err := DecodeBytes(nil); err == nil {
		t.Error("Expected error for empty input")
	}
	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestPreprocess(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(64, 32)

	out, err := p.Preprocess(encodePNG(t, src), types.MediaTypePNG)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Preprocess output is not PNG: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Errorf("Expected bounds %v, got %v", src.Bounds(), img.Bounds())
	}

	// contrast pushes the light background further from mid gray
	r, _, _, _ := img.At(60, 30).RGBA()
	if r>>8 <= 200 {
		t.Errorf("Expected brighter background after contrast, got %d", r>>8)
	}
}

func TestPreprocessJPEG(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(32, 32), nil); err != nil {
		t.Fatal(err)
	}
	out, err := p.Preprocess(buf.Bytes(), types.MediaTypeJPEG)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("Expected JPEG output: %v", err)
	}
}

func TestPreprocessPDFPassthrough(t *testing.T) {
	p := NewProcessor()
	data := []byte("%PDF-1.4")
	out, err := p.Preprocess(data, types.MediaTypePDF)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("Expected PDF data to be returned unchanged")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	data := encodePNG(t, createTestImage(400, 100))

	b64, mt, err := p.PrepareImageForModel(data, types.MediaTypePNG, 1000)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if mt != types.MediaTypePNG {
		t.Errorf("Expected %s, got %s", types.MediaTypePNG, mt)
	}
	if b64 != base64.StdEncoding.EncodeToString(data) {
		t.Error("Expected small image to pass through unchanged")
	}

	b64, _, err = p.PrepareImageForModel(data, types.MediaTypePNG, 200)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("resized output is not PNG: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 50 {
		t.Errorf("Expected 200x50, got %dx%d", cfg.Width, cfg.Height)
	}

	if _, _, err := p.PrepareImageForModel([]byte("%PDF"), types.MediaTypePDF, 200); err == nil {
		t.Error("Expected error for PDF input")
	}
}

func TestMetadata(t *testing.T) {
	p := NewProcessor()
	md, err := p.Metadata(encodePNG(t, createTestImage(300, 200)))
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if md.Width != 300 || md.Height != 200 {
		t.Errorf("Expected 300x200, got %dx%d", md.Width, md.Height)
	}
	if md.Format != "png" {
		t.Errorf("Expected format png, got %s", md.Format)
	}
	if md.AspectRatio != 1.5 {
		t.Errorf("Expected aspect ratio 1.5, got %v", md.AspectRatio)
	}

	if _, err := p.Metadata([]byte("garbage")); err == nil {
		t.Error("Expected error for garbage input")
	}
}
