package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "code fence",
			raw:  "```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "prose around object",
			raw:  "Here is the result: {\"a\":1} Hope this helps",
			want: `{"a":1}`,
		},
		{
			name: "trailing commas",
			raw:  `{"a":[1,2,],"b":{"c":3,},}`,
			want: `{"a":[1,2],"b":{"c":3}}`,
		},
		{
			name: "comments",
			raw:  "{\n// the name\n\"a\":1, /* inline */ \"b\":2 // tail\n}",
			want: "{\n\n\"a\":1,  \"b\":2 \n}",
		},
		{
			name: "urls inside strings survive",
			raw:  `{"website":"https://acme.example.com/a,}","note":"/* not a comment */"}`,
			want: `{"website":"https://acme.example.com/a,}","note":"/* not a comment */"}`,
		},
		{
			name: "escaped quotes",
			raw:  `{"a":"say \"hi\" // still text"}`,
			want: `{"a":"say \"hi\" // still text"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.raw))
		})
	}
}

func TestDecodeResult(t *testing.T) {
	raw := "```json\n" + `{
		"extracted_text": " Acme Inc\nJane Doe ",
		"card_fields": {"company": "Acme Inc", "name": "Jane Doe", "title": null, "website": "https://acme.example.com"},
		"logos": [{"name": "logo_0", "svg": "<svg/>", "confidence": 0.8}],
		"metadata": {"model_notes": "clear scan", "provider": "spoofed"},
	}` + "\n```"

	res, err := DecodeResult("openai", raw)
	require.NoError(t, err)

	assert.Equal(t, "Acme Inc\nJane Doe", res.ExtractedText)
	assert.Equal(t, types.CardFields{Company: "Acme Inc", Name: "Jane Doe", Website: "https://acme.example.com"}, res.CardFields)
	assert.Equal(t, []types.LogoCandidate{{Name: "logo_0", SVG: "<svg/>", Confidence: 0.8}}, res.Logos)
	assert.Equal(t, "openai", res.Provider())
	assert.Equal(t, "clear scan", res.Metadata["model_notes"])
	assert.Equal(t, []any{}, res.Metadata[types.MetaLayoutElements])
}

func TestDecodeResult_EmptyObject(t *testing.T) {
	res, err := DecodeResult("gemini", "{}")
	require.NoError(t, err)
	assert.Empty(t, res.ExtractedText)
	assert.True(t, res.CardFields.IsEmpty())
	assert.NotNil(t, res.Logos)
	assert.Empty(t, res.Logos)
	assert.Equal(t, "gemini", res.Provider())
}

func TestDecode_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		wantShape string
	}{
		{"top-level string", `"just text"`, "string"},
		{"top-level array", `[1,2,3]`, "array[3]"},
		{"not json at all", `I could not read the card`, "non-json(25 bytes)"},
		{"confidence above one", `{"logos":[{"name":"l","svg":"s","confidence":1.5}]}`, "object{logos}"},
		{"confidence below zero", `{"logos":[{"name":"l","svg":"s","confidence":-0.1}]}`, "object{logos}"},
		{"logo missing svg", `{"logos":[{"name":"l","confidence":0.5}]}`, "object{logos}"},
		{"card field wrong type", `{"card_fields":{"phone":12345},"extracted_text":"x"}`, "object{card_fields,extracted_text}"},
		{"text wrong type", `{"extracted_text":["a"]}`, "object{extracted_text}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode("openai", tc.raw)
			require.Error(t, err)

			var vErr *client.ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %T", err)
			assert.Equal(t, tc.wantShape, vErr.Shape)
			assert.Equal(t, "openai", vErr.Provider)
			assert.ErrorIs(t, err, client.ErrValidation)
			assert.ErrorIs(t, err, client.ErrProvider)
		})
	}
}

func TestShape(t *testing.T) {
	assert.Equal(t, "null", Shape(nil))
	assert.Equal(t, "number", Shape(1.0))
	assert.Equal(t, "boolean", Shape(true))

	many := map[string]any{}
	for _, k := range strings.Split("a b c d e f g h i j", " ") {
		many[k] = 1
	}
	assert.Equal(t, "object{a,b,c,d,e,f,g,h,...}", Shape(many))
}

func TestCardResultSchemaCompiles(t *testing.T) {
	s, err := compiled()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Contains(t, CardPrompt, "extracted_text")
	assert.Contains(t, CardPrompt, "card_fields")
}
