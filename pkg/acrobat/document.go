package acrobat

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/menta2k/meishi-analyzer/pkg/schema"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// points to millimetres
const ptToMM = 25.4 / 72

// Logo images must be smaller than this in both dimensions
const maxLogoSide = 100

// and start this close to the left or top edge
const logoEdge = 50

// LogoConfidence is the fixed score given to embedded image logos
const LogoConfidence = 0.7

// Document is the extraction service response
type Document struct {
	Text         string         `json:"text"`
	TextElements []TextElement  `json:"text_elements"`
	Images       []Image        `json:"images"`
	Metadata     map[string]any `json:"metadata"`
}

// TextElement is a positioned run of text, in points
type TextElement struct {
	Text   any      `json:"text"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Font   Font     `json:"font"`
}

// Font describes how a text element is set
type Font struct {
	Size   *float64 `json:"size"`
	Bold   bool     `json:"bold"`
	Color  string   `json:"color"`
	Family string   `json:"family"`
}

// Image is an embedded raster image
type Image struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var documentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	number := map[string]any{"type": "number"}
	return schema.Compile("acrobat_document.json", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": []any{"string", "null"}},
			"text_elements": map[string]any{
				"type": []any{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"x": number, "y": number, "width": number, "height": number,
						"font": map[string]any{"type": "object"},
					},
				},
			},
			"images": map[string]any{
				"type": []any{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"x": number, "y": number, "width": number, "height": number,
					},
				},
			},
			"metadata": map[string]any{"type": []any{"object", "null"}},
		},
	})
})

// String returns the element text; non-string values are formatted
func (e TextElement) String() string {
	switch t := e.Text.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(e.Text)
}

// Result maps the document to an AnalysisResult
func (d *Document) Result() *types.AnalysisResult {
	pdfMeta := d.Metadata
	if pdfMeta == nil {
		pdfMeta = map[string]any{}
	}
	return &types.AnalysisResult{
		ExtractedText: strings.TrimSpace(d.Text),
		CardFields:    d.Fields(),
		Logos:         d.Logos(),
		Metadata: map[string]any{
			types.MetaProvider:       ProviderName,
			types.MetaLayoutElements: d.Layout(),
			types.MetaPDFMetadata:    pdfMeta,
		},
	}
}

// Fields classifies text elements by keyword, later elements winning, then
// takes company, name and title from the first three elements top to bottom
func (d *Document) Fields() types.CardFields {
	var f types.CardFields
	for _, el := range d.TextElements {
		content := strings.TrimSpace(el.String())
		switch {
		case strings.Contains(content, "@") && strings.Contains(content, "."):
			f.Email = content
		case isPhone(content):
			f.Phone = content
		case containsAny(strings.ToLower(content), "www", "http", "web"):
			f.Website = content
		}
	}

	sorted := slices.Clone(d.TextElements)
	slices.SortStableFunc(sorted, func(a, b TextElement) int {
		switch {
		case a.Y < b.Y:
			return -1
		case a.Y > b.Y:
			return 1
		}
		return 0
	})
	if len(sorted) >= 2 {
		f.Company = strings.TrimSpace(sorted[0].String())
		f.Name = strings.TrimSpace(sorted[1].String())
	}
	if len(sorted) >= 3 {
		f.Title = strings.TrimSpace(sorted[2].String())
	}
	return f
}

// Logos turns small images near the top or left edge into rectangular outlines
func (d *Document) Logos() []types.LogoCandidate {
	logos := []types.LogoCandidate{}
	for i, img := range d.Images {
		if img.Width >= maxLogoSide || img.Height >= maxLogoSide {
			continue
		}
		if img.X >= logoEdge && img.Y >= logoEdge {
			continue
		}
		x, y := num(img.X), num(img.Y)
		path := fmt.Sprintf("M%s %s H%s V%s H%s Z", x, y, num(img.X+img.Width), num(img.Y+img.Height), x)
		logos = append(logos, types.LogoCandidate{
			Name: fmt.Sprintf("logo_%d", i),
			SVG: fmt.Sprintf(`<svg viewBox="%s %s %s %s"><path d="%s" fill="black"/></svg>`,
				x, y, num(img.Width), num(img.Height), path),
			Confidence: LogoConfidence,
		})
	}
	return logos
}

// Layout converts non-blank text elements to millimetre positioned layout elements
func (d *Document) Layout() []types.LayoutElement {
	elements := []types.LayoutElement{}
	for _, el := range d.TextElements {
		text := el.String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		style := types.LayoutStyle{
			Size:   orDefault(el.Font.Size, 10),
			Weight: "normal",
			Color:  el.Font.Color,
			Family: el.Font.Family,
		}
		if el.Font.Bold {
			style.Weight = "bold"
		}
		if style.Color == "" {
			style.Color = "#000000"
		}
		if style.Family == "" {
			style.Family = "sans-serif"
		}
		elements = append(elements, types.LayoutElement{
			Key:    ElementKey(text),
			Text:   text,
			X:      el.X * ptToMM,
			Y:      el.Y * ptToMM,
			Width:  orDefault(el.Width, 50) * ptToMM,
			Height: orDefault(el.Height, 10) * ptToMM,
			Style:  style,
		})
	}
	return elements
}

// ElementKey guesses what a layout element holds from its text
func ElementKey(text string) string {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(text, "@"):
		return types.FieldEmail
	case isPhone(text):
		return types.FieldPhone
	case containsAny(lowered, "www", "http"):
		return types.FieldWebsite
	case len(strings.Fields(text)) <= 3 && !strings.ContainsFunc(text, unicode.IsDigit):
		return types.FieldName
	}
	return "text"
}

func isPhone(s string) bool {
	return containsAny(strings.ToLower(s), "tel", "phone", "電話")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
