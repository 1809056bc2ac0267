package client

import (
	"context"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Provider is an external document or vision service that turns raw document bytes
// into an AnalysisResult. Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and metadata
	Name() string
	Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error)
}
