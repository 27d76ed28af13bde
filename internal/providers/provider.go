package providers

import (
	"context"
	"fmt"

	"genboard/internal/domain"
)

// ModelType distinguishes image from video models.
type ModelType string

const (
	ModelTypeImage ModelType = "image"
	ModelTypeVideo ModelType = "video"
)

// Pricing holds the cost metadata attached to a model configuration.
type Pricing struct {
	PerOutputUSD float64
}

// ModelConfig is the immutable registry entry describing one model. It is
// looked up by ID and never mutated at runtime.
type ModelConfig struct {
	ID          string
	DisplayName string
	Provider    string
	Type        ModelType
	Pricing     Pricing
}

// SubmitRequest is the normalized request handed to any adapter.
type SubmitRequest struct {
	GenerationID   string
	Prompt         string
	NegativePrompt string
	Params         map[string]any
}

// Artifact is one generated asset as returned by a provider. Either URL or
// Data is populated; inline payloads are persisted by the caller.
type Artifact struct {
	URL    string
	MIME   string
	Width  int
	Height int
	Data   []byte
}

// Handle identifies an in-flight provider job. Providers that answer
// synchronously return Done with the artifacts inline and an empty job id.
type Handle struct {
	ProviderJobID string
	Done          bool
	Artifacts     []Artifact
}

// PollResult is the outcome of one poll cycle.
type PollResult struct {
	Done      bool
	Artifacts []Artifact
}

// Adapter is the uniform capability set the job subsystem uses to talk to one
// provider family. Implementations are stateless; every call is independent
// and idempotent from the adapter's perspective.
type Adapter interface {
	Submit(ctx context.Context, req SubmitRequest) (Handle, error)
	Poll(ctx context.Context, handle Handle) (PollResult, error)
	TranslateError(err error) error
}

// Factory constructs a fresh adapter bound to a model configuration. It must
// be a pure function: no shared mutable state between the adapters it returns.
type Factory func(cfg ModelConfig) Adapter

// Fault wraps a provider error so callers can annotate the failed generation
// while still matching on domain.ErrProviderFailure.
func Fault(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrProviderFailure)
}
