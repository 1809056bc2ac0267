package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

func TestMergeResults_FieldPrecedence(t *testing.T) {
	primary := &types.AnalysisResult{
		CardFields: types.CardFields{Company: "A Corp", Email: "a@corp.jp"},
	}
	secondary := &types.AnalysisResult{
		CardFields: types.CardFields{
			Company: "Other Corp",
			Name:    "Jane",
			Title:   "CTO",
			Email:   "jane@other.jp",
			Phone:   "+81 3 1234 5678",
			Address: "Tokyo",
			Website: "www.other.jp",
		},
	}

	merged := MergeResults(primary, secondary)

	for _, key := range types.FieldKeys {
		p, s, m := primary.CardFields.Get(key), secondary.CardFields.Get(key), merged.CardFields.Get(key)
		switch {
		case p != "":
			assert.Equal(t, p, m, "primary value must win for %s", key)
		case s != "":
			assert.Equal(t, s, m, "secondary value must fill %s", key)
		default:
			assert.Empty(t, m, key)
		}
	}
}

func TestMergeResults_Text(t *testing.T) {
	merged := MergeResults(&types.AnalysisResult{ExtractedText: "primary"}, &types.AnalysisResult{ExtractedText: "secondary"})
	assert.Equal(t, "primary", merged.ExtractedText)

	merged = MergeResults(&types.AnalysisResult{}, &types.AnalysisResult{ExtractedText: "secondary"})
	assert.Equal(t, "secondary", merged.ExtractedText)
}

func TestMergeResults_LogosNotConcatenated(t *testing.T) {
	pLogos := []types.LogoCandidate{{Name: "logo_0", SVG: "<svg/>", Confidence: 0.7}}
	sLogos := []types.LogoCandidate{{Name: "logo_0", Confidence: 0.9}, {Name: "logo_1", Confidence: 0.4}}

	merged := MergeResults(&types.AnalysisResult{Logos: pLogos}, &types.AnalysisResult{Logos: sLogos})
	assert.Equal(t, pLogos, merged.Logos)

	merged = MergeResults(&types.AnalysisResult{}, &types.AnalysisResult{Logos: sLogos})
	assert.Equal(t, sLogos, merged.Logos)
}

func TestMergeResults_Metadata(t *testing.T) {
	primary := &types.AnalysisResult{Metadata: map[string]any{
		types.MetaProvider:      "acrobat",
		types.MetaMergeStrategy: "bogus",
		"pdf_metadata":          map[string]any{"pages": 1},
	}}
	secondary := &types.AnalysisResult{Metadata: map[string]any{
		types.MetaProvider: "openai",
		"model":            "gpt-4o",
	}}

	merged := MergeResults(primary, secondary)

	assert.Equal(t, "openai", merged.Metadata[types.MetaProvider])
	assert.Equal(t, "gpt-4o", merged.Metadata["model"])
	assert.Equal(t, map[string]any{"pages": 1}, merged.Metadata["pdf_metadata"])
	assert.Equal(t, MergeStrategyPrimaryPreferred, merged.Metadata[types.MetaMergeStrategy])
}

func TestMergeResults_DoesNotMutateInputs(t *testing.T) {
	primary := &types.AnalysisResult{
		CardFields: types.CardFields{Company: "A"},
		Metadata:   map[string]any{types.MetaProvider: "acrobat"},
	}
	secondary := &types.AnalysisResult{
		CardFields: types.CardFields{Name: "B"},
		Logos:      []types.LogoCandidate{{Name: "logo_0"}},
		Metadata:   map[string]any{types.MetaProvider: "openai"},
	}
	pBefore, sBefore := primary.Clone(), secondary.Clone()

	merged := MergeResults(primary, secondary)
	merged.Logos[0].Name = "changed"

	assert.Equal(t, pBefore, primary)
	assert.Equal(t, sBefore, secondary)
}

func TestMergeResults_NilMetadata(t *testing.T) {
	merged := MergeResults(&types.AnalysisResult{}, &types.AnalysisResult{})
	assert.Equal(t, map[string]any{types.MetaMergeStrategy: MergeStrategyPrimaryPreferred}, merged.Metadata)
	assert.Nil(t, merged.Logos)
}
