// Package schema describes the JSON payload vision-language providers return
// for a business card and turns raw model output into an AnalysisResult.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// CardPrompt asks a model for the payload described by CardResultSchema
const CardPrompt = "You are a business card parser. Extract the card text fields and detect logos. " +
	"Return ONLY strict JSON with keys: " +
	"extracted_text (string, every line of text on the card separated by newlines), " +
	"card_fields (object with optional string keys company, name, title, email, phone, address, website), " +
	"logos (array of {name, svg, confidence}; svg is a complete <svg> document, confidence is between 0 and 1), " +
	"layout_elements (optional array of {key, text, x, y, width, height} in millimetres), " +
	"metadata (optional object). Omit fields that are not present on the card."

// CardResultSchema returns the JSON Schema a provider payload must satisfy
func CardResultSchema() map[string]any {
	optionalString := map[string]any{"type": []any{"string", "null"}}
	fields := map[string]any{}
	for _, key := range types.FieldKeys {
		fields[key] = optionalString
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extracted_text": optionalString,
			"card_fields": map[string]any{
				"type":       []any{"object", "null"},
				"properties": fields,
			},
			"logos": map[string]any{
				"type": []any{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "svg", "confidence"},
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"svg":        map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
				},
			},
			"layout_elements": map[string]any{"type": []any{"array", "null"}},
			"metadata":        map[string]any{"type": []any{"object", "null"}},
		},
	}
}

// Compile builds a validator from a schema expressed as a generic map
func Compile(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return Compile("card_result.json", CardResultSchema())
})

// Validate checks an already decoded JSON value against CardResultSchema
func Validate(v any) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Payload is a validated provider response
type Payload struct {
	ExtractedText  *string               `json:"extracted_text"`
	CardFields     map[string]*string    `json:"card_fields"`
	Logos          []types.LogoCandidate `json:"logos"`
	LayoutElements []any                 `json:"layout_elements"`
	Metadata       map[string]any        `json:"metadata"`
}

// Decode sanitizes raw model output, validates it and decodes it. Every failure
// is a *client.ValidationError naming the top-level shape of what was received.
func Decode(provider, raw string) (*Payload, error) {
	cleaned := Sanitize(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &client.ValidationError{
			Provider: provider,
			Shape:    fmt.Sprintf("non-json(%d bytes)", len(raw)),
			Err:      fmt.Errorf("unmarshal data: %w", err),
		}
	}
	if err := Validate(v); err != nil {
		return nil, &client.ValidationError{Provider: provider, Shape: Shape(v), Err: err}
	}

	var p Payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, &client.ValidationError{Provider: provider, Shape: Shape(v), Err: fmt.Errorf("unmarshal payload: %w", err)}
	}
	return &p, nil
}

// Result converts the payload to an AnalysisResult tagged with provider.
// Model supplied metadata is kept; provider and layout_elements are always set.
func (p *Payload) Result(provider string) *types.AnalysisResult {
	res := &types.AnalysisResult{
		Logos:    p.Logos,
		Metadata: make(map[string]any, len(p.Metadata)+2),
	}
	if p.ExtractedText != nil {
		res.ExtractedText = strings.TrimSpace(*p.ExtractedText)
	}
	for _, key := range types.FieldKeys {
		if v := p.CardFields[key]; v != nil {
			res.CardFields.FillEmpty(key, strings.TrimSpace(*v))
		}
	}
	if res.Logos == nil {
		res.Logos = []types.LogoCandidate{}
	}
	for k, v := range p.Metadata {
		res.Metadata[k] = v
	}
	layout := p.LayoutElements
	if layout == nil {
		layout = []any{}
	}
	res.Metadata[types.MetaProvider] = provider
	res.Metadata[types.MetaLayoutElements] = layout
	return res
}

// DecodeResult is Decode followed by Result
func DecodeResult(provider, raw string) (*types.AnalysisResult, error) {
	p, err := Decode(provider, raw)
	if err != nil {
		return nil, err
	}
	return p.Result(provider), nil
}

// Shape describes the top-level structure of a decoded JSON value, listing at
// most eight object keys
func Shape(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 8 {
			keys = append(keys[:8], "...")
		}
		return "object{" + strings.Join(keys, ",") + "}"
	case []any:
		return fmt.Sprintf("array[%d]", len(t))
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
