package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/router"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// mockProvider is a client.Provider whose behavior is set per test
type mockProvider struct {
	name        string
	AnalyzeFunc func(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error)
	Calls       int
	trace       *[]string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	m.Calls++
	if m.trace != nil {
		*m.trace = append(*m.trace, m.name)
	}
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, data, mediaType)
	}
	return nil, errors.New("AnalyzeFunc is not implemented")
}

func returning(res *types.AnalysisResult) func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error) {
	return func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error) {
		return res.Clone(), nil
	}
}

func failing(err error) func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error) {
	return func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error) {
		return nil, err
	}
}

var pdf = []byte("%PDF-1.4 fake")

func TestNewRequiresVisionProvider(t *testing.T) {
	_, err := router.New(&mockProvider{name: "acrobat"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrConfiguration)
}

func TestAnalyze_CompletePrimaryIsReturnedUnchanged(t *testing.T) {
	primaryRes := &types.AnalysisResult{
		ExtractedText: "A Corp\nJohn Doe",
		CardFields:    types.CardFields{Company: "A Corp", Name: "John Doe"},
		Metadata:      map[string]any{types.MetaProvider: "acrobat"},
	}
	doc := &mockProvider{name: "acrobat", AnalyzeFunc: returning(primaryRes)}
	vis := &mockProvider{name: "openai"}

	r, err := router.New(doc, vis)
	require.NoError(t, err)

	got, err := r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, primaryRes, got)
	assert.Equal(t, 0, vis.Calls)
	_, merged := got.Metadata[types.MetaMergeStrategy]
	assert.False(t, merged)
}

func TestAnalyze_IncompletePrimaryIsMerged(t *testing.T) {
	// primary has empty name and empty text; secondary fills them
	doc := &mockProvider{name: "acrobat", AnalyzeFunc: returning(&types.AnalysisResult{
		CardFields: types.CardFields{Phone: "03-1234-5678"},
		Metadata:   map[string]any{types.MetaProvider: "acrobat"},
	})}
	vis := &mockProvider{name: "openai", AnalyzeFunc: returning(&types.AnalysisResult{
		ExtractedText: "Acme\nJane",
		CardFields:    types.CardFields{Name: "Jane", Phone: "000"},
		Metadata:      map[string]any{types.MetaProvider: "openai"},
	})}

	r, err := router.New(doc, vis)
	require.NoError(t, err)

	got, err := r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.CardFields.Name)
	assert.Equal(t, "03-1234-5678", got.CardFields.Phone)
	assert.Equal(t, "Acme\nJane", got.ExtractedText)
	assert.Equal(t, router.MergeStrategyPrimaryPreferred, got.Metadata[types.MetaMergeStrategy])
	assert.Equal(t, "openai", got.Metadata[types.MetaProvider])
	assert.Equal(t, 1, doc.Calls)
	assert.Equal(t, 1, vis.Calls)
}

func TestAnalyze_IncompleteWhenOnlyTextMissing(t *testing.T) {
	doc := &mockProvider{name: "acrobat", AnalyzeFunc: returning(&types.AnalysisResult{
		CardFields: types.CardFields{Name: "Taro"},
	})}
	vis := &mockProvider{name: "openai", AnalyzeFunc: returning(&types.AnalysisResult{
		ExtractedText: "Taro Yamada",
		CardFields:    types.CardFields{Name: "Taro Yamada"},
	})}
	r, err := router.New(doc, vis)
	require.NoError(t, err)

	got, err := r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "Taro", got.CardFields.Name)
	assert.Equal(t, "Taro Yamada", got.ExtractedText)
	assert.Equal(t, 1, vis.Calls)
}

func TestAnalyze_PrimaryFailureFallsBackVerbatim(t *testing.T) {
	secondaryRes := &types.AnalysisResult{
		ExtractedText: "Acme\nJane",
		CardFields:    types.CardFields{Name: "Jane"},
		Metadata:      map[string]any{types.MetaProvider: "openai"},
	}
	doc := &mockProvider{name: "acrobat", AnalyzeFunc: failing(
		client.NewProviderError("acrobat", "post", errors.New("connection refused")))}
	vis := &mockProvider{name: "openai", AnalyzeFunc: returning(secondaryRes)}

	r, err := router.New(doc, vis)
	require.NoError(t, err)

	got, err := r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, secondaryRes, got)
	_, merged := got.Metadata[types.MetaMergeStrategy]
	assert.False(t, merged, "fallback after failure must not merge")
}

func TestAnalyze_PrimaryNilResultCountsAsFailure(t *testing.T) {
	doc := &mockProvider{name: "acrobat", AnalyzeFunc: func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error) {
		return nil, nil
	}}
	vis := &mockProvider{name: "openai", AnalyzeFunc: returning(&types.AnalysisResult{ExtractedText: "x"})}
	r, err := router.New(doc, vis)
	require.NoError(t, err)

	got, err := r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ExtractedText)
}

func TestAnalyze_SecondaryErrorPropagates(t *testing.T) {
	secondaryErr := client.NewProviderError("openai", "post", errors.New("status 503"))

	testCases := []struct {
		name       string
		primary    func(context.Context, []byte, types.MediaType) (*types.AnalysisResult, error)
		wantCalled int
	}{
		{
			name:       "primary failed",
			primary:    failing(errors.New("primary down")),
			wantCalled: 1,
		},
		{
			name:       "primary incomplete",
			primary:    returning(&types.AnalysisResult{ExtractedText: "only text"}),
			wantCalled: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := &mockProvider{name: "acrobat", AnalyzeFunc: tc.primary}
			vis := &mockProvider{name: "openai", AnalyzeFunc: failing(secondaryErr)}
			r, err := router.New(doc, vis)
			require.NoError(t, err)

			_, err = r.Analyze(context.Background(), pdf, types.MediaTypePDF)
			require.Error(t, err)
			assert.ErrorIs(t, err, secondaryErr)
			assert.NotContains(t, err.Error(), "primary down")
			assert.Equal(t, tc.wantCalled, vis.Calls)
		})
	}
}

func TestAnalyze_RasterUsesVisionOnly(t *testing.T) {
	for _, mt := range []types.MediaType{types.MediaTypePNG, types.MediaTypeJPEG, types.MediaTypeWEBP} {
		t.Run(mt.String(), func(t *testing.T) {
			doc := &mockProvider{name: "acrobat"}
			// an incomplete vision result is still final on the raster path
			vis := &mockProvider{name: "openai", AnalyzeFunc: returning(&types.AnalysisResult{})}
			r, err := router.New(doc, vis)
			require.NoError(t, err)

			_, err = r.Analyze(context.Background(), []byte("img"), mt)
			require.NoError(t, err)
			assert.Equal(t, 0, doc.Calls)
			assert.Equal(t, 1, vis.Calls)
		})
	}
}

func TestAnalyze_RasterErrorPropagates(t *testing.T) {
	visErr := &client.ValidationError{Provider: "openai", Shape: "string", Err: errors.New("not an object")}
	vis := &mockProvider{name: "openai", AnalyzeFunc: failing(visErr)}
	r, err := router.New(nil, vis)
	require.NoError(t, err)

	_, err = r.Analyze(context.Background(), []byte("img"), types.MediaTypePNG)
	assert.ErrorIs(t, err, client.ErrValidation)
}

func TestAnalyze_PDFWithoutDocumentProvider(t *testing.T) {
	vis := &mockProvider{name: "openai", AnalyzeFunc: failing(errors.New("boom"))}
	r, err := router.New(nil, vis)
	require.NoError(t, err)

	_, err = r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, vis.Calls)
}

func TestAnalyze_SecondaryNeverBeforePrimary(t *testing.T) {
	var trace []string
	doc := &mockProvider{name: "acrobat", trace: &trace, AnalyzeFunc: returning(&types.AnalysisResult{})}
	vis := &mockProvider{name: "openai", trace: &trace, AnalyzeFunc: returning(&types.AnalysisResult{ExtractedText: "t"})}
	r, err := router.New(doc, vis)
	require.NoError(t, err)

	_, err = r.Analyze(context.Background(), pdf, types.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, []string{"acrobat", "openai"}, trace)
}

func TestSelect(t *testing.T) {
	doc := &mockProvider{name: "acrobat"}
	vis := &mockProvider{name: "openai"}
	r, err := router.New(doc, vis)
	require.NoError(t, err)

	route := r.Select(types.MediaTypePDF)
	assert.Same(t, doc, route.Primary)
	assert.Same(t, vis, route.Secondary)

	route = r.Select(types.MediaTypeJPEG)
	assert.Same(t, vis, route.Primary)
	assert.Nil(t, route.Secondary)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "call_secondary_only", router.CallSecondaryOnly.String())
	assert.Equal(t, "done", router.Done.String())
	assert.Equal(t, "state(42)", router.State(42).String())
}
