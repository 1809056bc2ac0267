package logo

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"testing"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

// createCanvas creates a white card of the given size
func createCanvas(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
}

func fillDisk(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.Set(x, y, c)
			}
		}
	}
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	d := New()
	if d == nil {
		t.Fatal("New() returned nil")
	}
	if d.config.Threshold != 200 {
		t.Errorf("Expected threshold 200, got %d", d.config.Threshold)
	}
	if d.config.MinArea != 1000 || d.config.MaxArea != 50000 {
		t.Errorf("Expected area bounds 1000..50000, got %v..%v", d.config.MinArea, d.config.MaxArea)
	}
}

func TestDetectLogosSquareWithHole(t *testing.T) {
	img := createCanvas(200, 200)
	fillRect(img, image.Rect(70, 70, 130, 130), black)
	fillDisk(img, 100, 100, 15, white)

	logos := New().DetectLogos(encodePNG(t, img))
	if len(logos) != 1 {
		t.Fatalf("Expected 1 logo, got %d", len(logos))
	}

	logo := logos[0]
	if logo.Name != "logo_0" {
		t.Errorf("Expected name logo_0, got %s", logo.Name)
	}
	if !strings.HasPrefix(logo.SVG, `<svg viewBox="0 0 60 60">`) {
		t.Errorf("Expected viewBox of the region, got %s", logo.SVG)
	}
	if !strings.Contains(logo.SVG, `d="M`) || !strings.Contains(logo.SVG, " Z") {
		t.Errorf("Expected a closed path, got %s", logo.SVG)
	}
	// 60x60 box: 3600/10000, near square bonus
	if math.Abs(logo.Confidence-0.432) > 1e-9 {
		t.Errorf("Expected confidence 0.432, got %v", logo.Confidence)
	}
}

func TestDetectLogosFiltersSpecksAndBars(t *testing.T) {
	img := createCanvas(400, 200)
	for _, x := range []int{10, 60, 110, 160} {
		fillRect(img, image.Rect(x, 10, x+5, 15), black)
	}
	fillRect(img, image.Rect(50, 150, 350, 170), black)

	logos := New().DetectLogos(encodePNG(t, img))
	if len(logos) != 0 {
		t.Errorf("Expected no logos, got %d", len(logos))
	}
}

func TestDetectLogosRejectsLargeArea(t *testing.T) {
	img := createCanvas(300, 300)
	fillRect(img, image.Rect(20, 20, 280, 280), black)

	if logos := New().DetectLogos(encodePNG(t, img)); len(logos) != 0 {
		t.Errorf("Expected no logos, got %d", len(logos))
	}
}

func TestDetectLogosInvalidInput(t *testing.T) {
	d := New()
	for _, data := range [][]byte{nil, {}, []byte("definitely not an image"), {0x89, 'P', 'N', 'G'}} {
		logos := d.DetectLogos(data)
		if logos == nil || len(logos) != 0 {
			t.Errorf("Expected empty list for %q, got %v", data, logos)
		}
	}
}

func TestFindRegionsIgnoresNestedMarks(t *testing.T) {
	img := createCanvas(300, 300)
	fillRect(img, image.Rect(50, 50, 250, 250), black)
	fillRect(img, image.Rect(90, 90, 210, 210), white)
	fillRect(img, image.Rect(130, 130, 170, 170), black)

	regions := New().FindRegions(GrayPlane(img))
	if len(regions) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(regions))
	}
	if want := image.Rect(50, 50, 250, 250); regions[0].Bounds != want {
		t.Errorf("Expected bounds %v, got %v", want, regions[0].Bounds)
	}
}

func TestFindRegionsDiscoveryOrder(t *testing.T) {
	img := createCanvas(300, 250)
	fillRect(img, image.Rect(200, 20, 250, 70), black)
	fillRect(img, image.Rect(20, 120, 70, 170), black)

	regions := New().FindRegions(GrayPlane(img))
	if len(regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(regions))
	}
	if regions[0].Bounds.Min != image.Pt(200, 20) {
		t.Errorf("Expected first region at (200,20), got %v", regions[0].Bounds.Min)
	}
	if regions[1].Bounds.Min != image.Pt(20, 120) {
		t.Errorf("Expected second region at (20,120), got %v", regions[1].Bounds.Min)
	}
	if regions[0].ContourArea != 49*49 {
		t.Errorf("Expected contour area %d, got %v", 49*49, regions[0].ContourArea)
	}
}

func TestConfidence(t *testing.T) {
	d := New()

	testCases := []struct {
		name   string
		area   float64
		aspect float64
		want   float64
	}{
		{"small square", 2000, 1.0, 0.24},
		{"small wide", 2000, 1.5, 0.2},
		{"clamped before bonus", 20000, 1.5, 1.0},
		{"clamped after bonus", 9000, 1.0, 1.0},
		{"bonus bounds are exclusive", 5000, 1.2, 0.5},
		{"zero area", 0, 1.0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Confidence(tc.area, tc.aspect)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Confidence(%v, %v) = %v, want %v", tc.area, tc.aspect, got, tc.want)
			}
		})
	}
}

func TestConfidenceBounds(t *testing.T) {
	d := New()
	for area := 0.0; area <= 60000; area += 250 {
		for aspect := 0.1; aspect <= 4; aspect += 0.05 {
			c := d.Confidence(area, aspect)
			if c < 0 || c > 1 {
				t.Fatalf("Confidence(%v, %v) = %v out of [0,1]", area, aspect, c)
			}
		}
	}
}

func TestConfidenceSquareBonusMonotonic(t *testing.T) {
	d := New()
	for area := 100.0; area <= 50000; area += 100 {
		if d.Confidence(area, 1.0) < d.Confidence(area, 3.0) {
			t.Fatalf("area %v: square confidence below elongated", area)
		}
	}
}

func BenchmarkDetectLogos(b *testing.B) {
	img := createCanvas(1000, 600)
	fillRect(img, image.Rect(50, 50, 150, 150), black)
	fillDisk(img, 100, 100, 30, white)
	fillRect(img, image.Rect(300, 400, 900, 420), black)
	data := encodePNG(b, img)
	d := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.DetectLogos(data)
	}
}
