package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"genboard/internal/domain"
	"genboard/internal/generation"
	"genboard/internal/middleware"
	"genboard/internal/providers"
	"genboard/internal/sqlinline"
	"genboard/pkg/zip"
)

type createGenerationRequest struct {
	ModelID        string `json:"model_id"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if _, ok := a.Registry.GetConfig(req.ModelID); !ok {
		a.invalid(w, map[string]string{"model_id": "model is not available"})
		return
	}
	g, err := a.Service.Create(r.Context(), generation.CreateParams{
		UserID:         userID,
		SessionID:      middleware.SessionIDFromContext(r.Context()),
		ModelID:        req.ModelID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
	})
	if errors.Is(err, domain.ErrInvalidInput) {
		a.invalid(w, map[string]string{"prompt": "prompt is required"})
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("create generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create generation")
		return
	}
	a.json(w, http.StatusAccepted, generationResponse(g))
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	g, err := a.Service.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("load generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}

	body := generationResponse(g)
	if g.Status == domain.StatusCompleted {
		outputs, err := a.outputsForGeneration(r, g.ID)
		if err != nil {
			a.Logger.Error().Err(err).Str("generation_id", g.ID).Msg("load outputs failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load outputs")
			return
		}
		body["outputs"] = outputs
	}
	a.json(w, http.StatusOK, body)
}

func (a *App) DismissGeneration(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	err := a.Service.Dismiss(r.Context(), chi.URLParam(r, "id"), userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
	case errors.Is(err, domain.ErrTerminalState):
		a.error(w, http.StatusConflict, "terminal_state", "generation is no longer processing")
	case err != nil:
		a.Logger.Error().Err(err).Msg("dismiss generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to dismiss generation")
	default:
		a.json(w, http.StatusOK, map[string]string{"status": string(domain.StatusDismissed)})
	}
}

// ListModels exposes the catalog so clients never hardcode model ids.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID           string  `json:"id"`
		DisplayName  string  `json:"display_name"`
		Provider     string  `json:"provider"`
		Type         string  `json:"type"`
		PerOutputUSD float64 `json:"per_output_usd"`
	}
	var out []model
	for _, t := range []providers.ModelType{providers.ModelTypeImage, providers.ModelTypeVideo} {
		for _, cfg := range a.Registry.ListByType(t) {
			out = append(out, model{
				ID:           cfg.ID,
				DisplayName:  cfg.DisplayName,
				Provider:     cfg.Provider,
				Type:         string(cfg.Type),
				PerOutputUSD: cfg.Pricing.PerOutputUSD,
			})
		}
	}
	a.json(w, http.StatusOK, map[string]any{"models": out})
}

// DownloadOutputsArchive streams every output of a completed generation as a
// single zip. Only locally stored artifacts can be bundled; rows pointing at
// external URLs are skipped.
func (a *App) DownloadOutputsArchive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	g, err := a.Service.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	if g.Status != domain.StatusCompleted {
		a.error(w, http.StatusConflict, "not_completed", "generation has no downloadable outputs yet")
		return
	}

	outputs, err := a.loadOutputs(r, g.ID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load outputs")
		return
	}
	var assets []zip.Asset
	for _, o := range outputs {
		key, ok := a.storageKeyFromURL(o.FileURL)
		if !ok {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("output_id", o.ID).Msg("archive: read artifact failed")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: path.Base(key),
			MIME:     o.FileType,
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no locally stored outputs to archive")
		return
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+g.ID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// storageKeyFromURL maps a public file URL back to a store key when the URL
// lives under the configured storage base.
func (a *App) storageKeyFromURL(fileURL string) (string, bool) {
	base := strings.TrimRight(a.Config.StorageBaseURL, "/")
	if base == "" || !strings.HasPrefix(fileURL, base+"/") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(fileURL, base+"/"))
	if err != nil {
		return "", false
	}
	return key, true
}

func (a *App) loadOutputs(r *http.Request, generationID string) ([]domain.Output, error) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectOutputsForGeneration, generationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var outputs []domain.Output
	for rows.Next() {
		var o domain.Output
		if err := rows.Scan(
			&o.ID, &o.GenerationID, &o.FileURL, &o.FileType,
			&o.Width, &o.Height, &o.IsStarred, &o.IsApproved, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

func (a *App) outputsForGeneration(r *http.Request, generationID string) ([]map[string]any, error) {
	outputs, err := a.loadOutputs(r, generationID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, outputResponse(o))
	}
	return out, nil
}

func generationResponse(g *domain.Generation) map[string]any {
	body := map[string]any{
		"id":         g.ID,
		"model_id":   g.ModelID,
		"prompt":     g.Prompt,
		"status":     string(g.Status),
		"created_at": g.CreatedAt,
		"updated_at": g.UpdatedAt,
	}
	if g.NegativePrompt != "" {
		body["negative_prompt"] = g.NegativePrompt
	}
	if g.Cost != nil {
		body["cost"] = *g.Cost
	}
	if g.Metadata.Error != "" {
		body["error"] = g.Metadata.Error
	}
	if g.Metadata.LastStep != "" {
		body["last_step"] = g.Metadata.LastStep
	}
	return body
}

func outputResponse(o domain.Output) map[string]any {
	return map[string]any{
		"id":          o.ID,
		"file_url":    o.FileURL,
		"file_type":   o.FileType,
		"width":       o.Width,
		"height":      o.Height,
		"is_starred":  o.IsStarred,
		"is_approved": o.IsApproved,
		"created_at":  o.CreatedAt,
	}
}
