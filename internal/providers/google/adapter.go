package google

import (
	"context"
	"errors"
	"fmt"

	"genboard/internal/providers"
	"genboard/internal/providers/genai"
)

// Adapter serves the Google provider family: Gemini image models answer
// synchronously, Veo video models run as long-running operations identified
// by an operation name carried in the job handle.
type Adapter struct {
	client *genai.Client
	model  providers.ModelConfig
}

// NewFactory returns the pure constructor bound to a shared API client.
func NewFactory(client *genai.Client) providers.Factory {
	return func(cfg providers.ModelConfig) providers.Adapter {
		return &Adapter{client: client, model: cfg}
	}
}

func (a *Adapter) Submit(ctx context.Context, req providers.SubmitRequest) (providers.Handle, error) {
	switch a.model.Type {
	case providers.ModelTypeVideo:
		name, err := a.client.StartVideoGeneration(ctx, genai.VideoRequest{
			Model:          a.model.ID,
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			RequestID:      req.GenerationID,
		})
		if err != nil {
			return providers.Handle{}, err
		}
		return providers.Handle{ProviderJobID: name}, nil
	default:
		quantity := 1
		if q, ok := req.Params["quantity"].(int); ok && q > 0 {
			quantity = q
		}
		assets, err := a.client.GenerateImages(ctx, genai.ImageRequest{
			Model:          a.model.ID,
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			Quantity:       quantity,
			RequestID:      req.GenerationID,
		})
		if err != nil {
			return providers.Handle{}, err
		}
		return providers.Handle{Done: true, Artifacts: imageArtifacts(assets)}, nil
	}
}

func (a *Adapter) Poll(ctx context.Context, handle providers.Handle) (providers.PollResult, error) {
	if handle.Done {
		return providers.PollResult{Done: true, Artifacts: handle.Artifacts}, nil
	}
	if handle.ProviderJobID == "" {
		return providers.PollResult{}, fmt.Errorf("google: handle has no operation name")
	}
	op, err := a.client.PollVideoOperation(ctx, handle.ProviderJobID)
	if err != nil {
		return providers.PollResult{}, err
	}
	if !op.Done {
		return providers.PollResult{}, nil
	}
	artifact := providers.Artifact{URL: op.URI, MIME: op.MIME}
	// Provider-hosted URIs require API credentials to fetch, so pull the
	// bytes down now and let the caller store them.
	if data, mime, err := a.client.DownloadFile(ctx, op.URI); err == nil {
		artifact.Data = data
		if artifact.MIME == "" {
			artifact.MIME = mime
		}
	}
	return providers.PollResult{
		Done:      true,
		Artifacts: []providers.Artifact{artifact},
	}, nil
}

func (a *Adapter) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return providers.Fault(a.model.Provider, err)
}

func imageArtifacts(assets []genai.ImageAsset) []providers.Artifact {
	out := make([]providers.Artifact, len(assets))
	for i, asset := range assets {
		out[i] = providers.Artifact{
			URL:    asset.URL,
			MIME:   asset.Format,
			Width:  asset.Width,
			Height: asset.Height,
			Data:   asset.Data,
		}
	}
	return out
}

var _ providers.Adapter = (*Adapter)(nil)
