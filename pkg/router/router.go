// Package router selects extraction providers by media type, runs the
// primary/secondary fallback protocol and merges partial results.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/menta2k/meishi-analyzer/pkg/client"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// State is a step of the routing state machine
type State int

const (
	CallPrimary State = iota
	EvaluateCompleteness
	CallSecondaryOnly
	CallSecondary
	Merge
	Done
)

func (s State) String() string {
	switch s {
	case CallPrimary:
		return "call_primary"
	case EvaluateCompleteness:
		return "evaluate_completeness"
	case CallSecondaryOnly:
		return "call_secondary_only"
	case CallSecondary:
		return "call_secondary"
	case Merge:
		return "merge"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Router assembles one AnalysisResult per request from a document-extraction
// provider and a vision-language provider. It holds no per-request state.
type Router struct {
	document client.Provider
	vision   client.Provider
	logger   *slog.Logger
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger used for routing events
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Router. vision is required; document may be nil, in which case
// PDFs are sent to the vision provider alone.
func New(document, vision client.Provider, opts ...Option) (*Router, error) {
	if vision == nil {
		return nil, &client.ConfigurationError{Provider: "router", Setting: "vision provider"}
	}
	r := &Router{document: document, vision: vision, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route names the providers that serve a media type. Secondary is nil when
// there is no fallback.
type Route struct {
	Primary   client.Provider
	Secondary client.Provider
}

// Select returns the route for mediaType
func (r *Router) Select(mediaType types.MediaType) Route {
	if mediaType.IsPDF() && r.document != nil {
		return Route{Primary: r.document, Secondary: r.vision}
	}
	return Route{Primary: r.vision}
}

// Incomplete reports whether a primary result needs the secondary provider:
// its name field or its extracted text is empty.
func Incomplete(res *types.AnalysisResult) bool {
	return res.CardFields.Name == "" || res.ExtractedText == ""
}

// Analyze routes the document and returns the final result. Failures of the
// primary provider on the PDF path are logged and recovered by using the
// secondary result verbatim; every other provider failure is returned.
func (r *Router) Analyze(ctx context.Context, data []byte, mediaType types.MediaType) (*types.AnalysisResult, error) {
	rid := uuid.New().String()
	route := r.Select(mediaType)
	log := r.logger.With("req_id", rid, "media_type", mediaType.String(), "bytes", len(data))

	if route.Secondary == nil {
		out := Invoke(ctx, route.Primary, data, mediaType)
		if !out.OK() {
			log.Error("router.sole_failed", "provider", out.Provider, "error", out.Err)
			return nil, out.Err
		}
		log.Info("router.done", "provider", out.Provider, "elapsed_ms", out.Elapsed.Milliseconds())
		return out.Result, nil
	}

	var primary, secondary Outcome
	var result *types.AnalysisResult
	state := CallPrimary
	for state != Done {
		log.Debug("router.state", "state", state.String())
		switch state {
		case CallPrimary:
			primary = Invoke(ctx, route.Primary, data, mediaType)
			if !primary.OK() {
				log.Warn("router.primary_failed", "provider", primary.Provider, "error", primary.Err)
				state = CallSecondaryOnly
				continue
			}
			state = EvaluateCompleteness

		case EvaluateCompleteness:
			if Incomplete(primary.Result) {
				log.Info("router.primary_incomplete", "provider", primary.Provider,
					"has_name", primary.Result.CardFields.Name != "",
					"has_text", primary.Result.ExtractedText != "")
				state = CallSecondary
				continue
			}
			result = primary.Result
			state = Done

		case CallSecondaryOnly:
			secondary = Invoke(ctx, route.Secondary, data, mediaType)
			if !secondary.OK() {
				log.Error("router.secondary_failed", "provider", secondary.Provider, "error", secondary.Err)
				return nil, secondary.Err
			}
			result = secondary.Result
			state = Done

		case CallSecondary:
			secondary = Invoke(ctx, route.Secondary, data, mediaType)
			if !secondary.OK() {
				log.Error("router.secondary_failed", "provider", secondary.Provider, "error", secondary.Err)
				return nil, secondary.Err
			}
			state = Merge

		case Merge:
			result = MergeResults(primary.Result, secondary.Result)
			log.Info("router.merge", "primary", primary.Provider, "secondary", secondary.Provider)
			state = Done

		default:
			return nil, errors.New("router: unreachable state " + state.String())
		}
	}

	log.Info("router.done",
		"provider", result.Provider(),
		"primary_ms", primary.Elapsed.Milliseconds(),
		"secondary_ms", secondary.Elapsed.Milliseconds(),
	)
	return result, nil
}
