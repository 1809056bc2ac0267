package client

import (
	"errors"
	"fmt"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// Sentinel errors for errors.Is checks
var (
	ErrConfiguration        = errors.New("provider configuration error")
	ErrProvider             = errors.New("provider call failed")
	ErrValidation           = errors.New("provider response failed validation")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// ConfigurationError is returned by provider constructors when a required
// setting such as an API key is missing. It is never retried.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Provider, e.Setting)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ProviderError reports a failed provider call: transport, HTTP status,
// or a media type the provider does not handle.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// ValidationError reports a provider payload that could not be decoded or did
// not match the expected schema. Shape is a compact description of what was received.
type ValidationError struct {
	Provider string
	Shape    string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid response (got %s): %v", e.Provider, e.Shape, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches both ErrValidation and ErrProvider; a malformed payload is a provider failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrProvider
}

// NewProviderError wraps err as a ProviderError
func NewProviderError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// UnsupportedMediaType builds the ProviderError returned when a provider cannot handle mediaType
func UnsupportedMediaType(provider string, mediaType types.MediaType) error {
	return &ProviderError{
		Provider: provider,
		Op:       "analyze",
		Err:      fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType),
	}
}
