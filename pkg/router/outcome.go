package router

import (
	"context"
	"fmt"
	"time"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Outcome is the tagged result of one provider invocation: exactly one of
// Result and Err is set.
type Outcome struct {
	Provider string
	Result   *types.AnalysisResult
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the invocation succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Invoke calls the provider and folds its return values into an Outcome.
// A provider that returns neither a result nor an error produces a failed Outcome.
func Invoke(ctx context.Context, p client.Provider, data []byte, mediaType types.MediaType) Outcome {
	start := time.Now()
	res, err := p.Analyze(ctx, data, mediaType)
	out := Outcome{Provider: p.Name(), Elapsed: time.Since(start)}
	switch {
	case err != nil:
		out.Err = err
	case res == nil:
		out.Err = client.NewProviderError(p.Name(), "analyze", fmt.Errorf("provider returned no result"))
	default:
		out.Result = res
	}
	return out
}
