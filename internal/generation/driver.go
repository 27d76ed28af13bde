package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/providers"
	"genboard/internal/registry"
	"genboard/internal/storage"
)

// Driver executes one claimed generation end to end: resolve the adapter,
// submit to the provider, poll until done while recording liveness, persist
// the artifacts and write the terminal status. There is no cancellation of
// in-flight provider work; a driver killed mid-poll leaves the generation in
// 'processing' for the reaper.
type Driver struct {
	service  *Service
	recorder *Recorder
	registry *registry.Registry
	store    *storage.ArtifactStore
	logger   infra.Logger

	baseURL      string
	pollInterval time.Duration
}

func NewDriver(
	service *Service,
	recorder *Recorder,
	reg *registry.Registry,
	store *storage.ArtifactStore,
	logger infra.Logger,
	baseURL string,
	pollInterval time.Duration,
) *Driver {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Driver{
		service:      service,
		recorder:     recorder,
		registry:     reg,
		store:        store,
		logger:       logger,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
	}
}

// Process drives a generation that is already in 'processing'. Terminal
// writes go through conditional updates, so losing a race against the reaper
// or an owner dismissal is logged and absorbed.
func (d *Driver) Process(ctx context.Context, g *domain.Generation) {
	adapter, err := d.registry.Resolve(g.ModelID)
	if err != nil {
		// Unknown model is permanent: fail without retry.
		d.failWith(ctx, g.ID, fmt.Sprintf("model %q is not registered", g.ModelID))
		return
	}

	d.recorder.AppendDebugLog(ctx, g.ID, "submitting", g.ModelID)
	d.recorder.RecordHeartbeat(ctx, g.ID)

	handle, err := adapter.Submit(ctx, providers.SubmitRequest{
		GenerationID:   g.ID,
		Prompt:         g.Prompt,
		NegativePrompt: g.NegativePrompt,
	})
	if err != nil {
		d.failWith(ctx, g.ID, adapter.TranslateError(err).Error())
		return
	}
	if handle.ProviderJobID != "" {
		if err := d.service.RecordProviderJobID(ctx, g.ID, handle.ProviderJobID); err != nil {
			d.logger.Warn().Err(err).Str("generation_id", g.ID).Msg("driver: record provider job id failed")
		}
	}
	d.recorder.AppendDebugLog(ctx, g.ID, "submitted", handle.ProviderJobID)

	artifacts, err := d.await(ctx, g.ID, adapter, handle)
	if err != nil {
		d.failWith(ctx, g.ID, adapter.TranslateError(err).Error())
		return
	}

	drafts := d.persistArtifacts(ctx, g, artifacts)
	if len(drafts) == 0 {
		d.failWith(ctx, g.ID, "provider returned no usable artifacts")
		return
	}

	cost := 0.0
	if cfg, ok := d.registry.GetConfig(g.ModelID); ok {
		cost = cfg.Pricing.PerOutputUSD * float64(len(drafts))
	}

	completed, err := d.service.Complete(ctx, g.ID, drafts, cost)
	if err != nil {
		d.logger.Error().Err(err).Str("generation_id", g.ID).Msg("driver: complete failed")
		return
	}
	if !completed {
		d.logger.Warn().Str("generation_id", g.ID).Msg("driver: generation became terminal during processing")
		return
	}
	d.logger.Info().
		Str("generation_id", g.ID).
		Str("model_id", g.ModelID).
		Int("outputs", len(drafts)).
		Float64("cost", cost).
		Msg("driver: generation completed")
}

func (d *Driver) await(ctx context.Context, id string, adapter providers.Adapter, handle providers.Handle) ([]providers.Artifact, error) {
	if handle.Done {
		return handle.Artifacts, nil
	}
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		d.recorder.RecordHeartbeat(ctx, id)
		d.recorder.AppendDebugLog(ctx, id, "polling", handle.ProviderJobID)
		result, err := adapter.Poll(ctx, handle)
		if err != nil {
			return nil, err
		}
		if result.Done {
			return result.Artifacts, nil
		}
	}
}

func (d *Driver) persistArtifacts(ctx context.Context, g *domain.Generation, artifacts []providers.Artifact) []OutputDraft {
	var drafts []OutputDraft
	for i, artifact := range artifacts {
		fileURL := strings.TrimSpace(artifact.URL)
		if len(artifact.Data) > 0 && d.store != nil {
			key := artifactKey(g.ID, artifact.MIME, i)
			saved, err := d.store.Save(ctx, key, artifact.Data)
			if err != nil {
				d.logger.Warn().Err(err).Str("generation_id", g.ID).Msg("driver: persist artifact failed")
			} else {
				fileURL = d.baseURL + "/" + saved
			}
		}
		if fileURL == "" {
			continue
		}
		mime := artifact.MIME
		if mime == "" {
			mime = "application/octet-stream"
		}
		drafts = append(drafts, OutputDraft{
			FileURL:  fileURL,
			FileType: mime,
			Width:    artifact.Width,
			Height:   artifact.Height,
		})
	}
	return drafts
}

func (d *Driver) failWith(ctx context.Context, id, cause string) {
	d.recorder.AppendDebugLog(ctx, id, "failed", cause)
	failed, err := d.service.Fail(ctx, id, cause)
	if err != nil {
		d.logger.Error().Err(err).Str("generation_id", id).Msg("driver: fail write errored")
		return
	}
	if !failed {
		d.logger.Warn().Str("generation_id", id).Msg("driver: failure skipped, already terminal")
		return
	}
	d.logger.Info().Str("generation_id", id).Str("cause", cause).Msg("driver: generation failed")
}

func artifactKey(generationID, mime string, index int) string {
	category, prefix, ext := "images", "image", ".png"
	if strings.HasPrefix(mime, "video/") {
		category, prefix, ext = "videos", "video", ".mp4"
	}
	switch mime {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("generated/%s/%s/%s-%02d%s", category, generationID, prefix, index+1, ext)
}
