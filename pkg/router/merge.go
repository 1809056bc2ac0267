package router

import (
	"maps"
	"slices"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// MergeStrategyPrimaryPreferred marks results combined by MergeResults
const MergeStrategyPrimaryPreferred = "document_primary_vision_fallback"

// MergeResults combines a primary and a secondary result, preferring the primary
// field by field. Logo lists are taken whole from one side, never concatenated.
// Secondary metadata overlays primary metadata, then merge_strategy is set.
// Neither input is modified.
func MergeResults(primary, secondary *types.AnalysisResult) *types.AnalysisResult {
	merged := &types.AnalysisResult{
		ExtractedText: primary.ExtractedText,
		CardFields:    primary.CardFields,
		Metadata:      make(map[string]any, len(primary.Metadata)+len(secondary.Metadata)+1),
	}
	if merged.ExtractedText == "" {
		merged.ExtractedText = secondary.ExtractedText
	}

	for _, key := range types.FieldKeys {
		merged.CardFields.FillEmpty(key, secondary.CardFields.Get(key))
	}

	if len(primary.Logos) > 0 {
		merged.Logos = slices.Clone(primary.Logos)
	} else {
		merged.Logos = slices.Clone(secondary.Logos)
	}

	maps.Copy(merged.Metadata, primary.Metadata)
	maps.Copy(merged.Metadata, secondary.Metadata)
	merged.Metadata[types.MetaMergeStrategy] = MergeStrategyPrimaryPreferred

	return merged
}
