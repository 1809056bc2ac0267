package types

import (
	"maps"
	"mime"
	"slices"
	"strings"
)

// MediaType is a declared document media type
type MediaType string

// Supported media types
const (
	MediaTypePDF  MediaType = "application/pdf"
	MediaTypePNG  MediaType = "image/png"
	MediaTypeJPEG MediaType = "image/jpeg"
	MediaTypeWEBP MediaType = "image/webp"
)

// SupportedMediaTypes is the allow-list accepted at the boundary
var SupportedMediaTypes = []MediaType{MediaTypePDF, MediaTypePNG, MediaTypeJPEG, MediaTypeWEBP}

// ParseMediaType normalizes a declared content type and reports whether it is supported.
// Parameters such as "; charset=binary" are ignored.
func ParseMediaType(s string) (MediaType, bool) {
	s = strings.TrimSpace(s)
	if parsed, _, err := mime.ParseMediaType(s); err == nil {
		s = parsed
	}
	mt := MediaType(strings.ToLower(s))
	if mt == "image/jpg" {
		mt = MediaTypeJPEG
	}
	return mt, slices.Contains(SupportedMediaTypes, mt)
}

// IsPDF reports whether the media type is PDF
func (m MediaType) IsPDF() bool {
	return m == MediaTypePDF
}

// IsRaster reports whether the media type is a supported raster image
func (m MediaType) IsRaster() bool {
	return m == MediaTypePNG || m == MediaTypeJPEG || m == MediaTypeWEBP
}

func (m MediaType) String() string {
	return string(m)
}

// Metadata keys read or written by the pipeline
const (
	MetaProvider       = "provider"
	MetaMergeStrategy  = "merge_strategy"
	MetaLayoutElements = "layout_elements"
	MetaPDFMetadata    = "pdf_metadata"
	MetaSource         = "source"
)

// Card field keys in canonical order
const (
	FieldCompany = "company"
	FieldName    = "name"
	FieldTitle   = "title"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"
	FieldWebsite = "website"
)

// FieldKeys lists every CardFields attribute in canonical order
var FieldKeys = []string{FieldCompany, FieldName, FieldTitle, FieldEmail, FieldPhone, FieldAddress, FieldWebsite}

// CardFields holds the contact fields extracted from a card.
// An empty string means the field is absent.
type CardFields struct {
	Company string `json:"company,omitempty"`
	Name    string `json:"name,omitempty"`
	Title   string `json:"title,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Website string `json:"website,omitempty"`
}

// Ref returns a pointer to the attribute named key, or nil for unknown keys
func (f *CardFields) Ref(key string) *string {
	switch key {
	case FieldCompany:
		return &f.Company
	case FieldName:
		return &f.Name
	case FieldTitle:
		return &f.Title
	case FieldEmail:
		return &f.Email
	case FieldPhone:
		return &f.Phone
	case FieldAddress:
		return &f.Address
	case FieldWebsite:
		return &f.Website
	}
	return nil
}

// Get returns the value of the attribute named key
func (f CardFields) Get(key string) string {
	if p := f.Ref(key); p != nil {
		return *p
	}
	return ""
}

// FillEmpty writes value into the attribute named key only when that attribute is empty
// and value is non-empty. It reports whether a write happened.
func (f *CardFields) FillEmpty(key, value string) bool {
	p := f.Ref(key)
	if p == nil || *p != "" || value == "" {
		return false
	}
	*p = value
	return true
}

// IsEmpty reports whether no attribute is set
func (f CardFields) IsEmpty() bool {
	return f == CardFields{}
}

// LogoCandidate is a detected graphical mark with its vector outline.
// SVG is a complete <svg> document whose viewBox is the region's own viewport.
type LogoCandidate struct {
	Name       string  `json:"name"`
	SVG        string  `json:"svg"`
	Confidence float64 `json:"confidence"`
}

// LayoutStyle describes how a layout element is rendered
type LayoutStyle struct {
	Size   float64 `json:"size"`
	Weight string  `json:"weight"`
	Color  string  `json:"color"`
	Family string  `json:"family"`
}

// LayoutElement is a positioned text element in millimetres
type LayoutElement struct {
	Key    string      `json:"key"`
	Text   string      `json:"text"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Style  LayoutStyle `json:"style"`
}

// AnalysisResult is the structured record produced for one document
type AnalysisResult struct {
	ExtractedText string          `json:"extracted_text"`
	CardFields    CardFields      `json:"card_fields"`
	Logos         []LogoCandidate `json:"logos"`
	Metadata      map[string]any  `json:"metadata"`
}

// Provider returns the provider tag recorded in metadata, if any
func (r *AnalysisResult) Provider() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[MetaProvider].(string)
	return s
}

// SetMeta sets a metadata entry, allocating the map when needed
func (r *AnalysisResult) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Clone returns a copy that shares no slices or maps with r.
// Metadata values themselves are copied shallowly.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Logos = slices.Clone(r.Logos)
	if r.Metadata != nil {
		out.Metadata = maps.Clone(r.Metadata)
	}
	return &out
}
