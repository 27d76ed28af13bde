package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genboard/internal/domain"
	"genboard/internal/middleware"
	"genboard/internal/sqlinline"
)

// debugStuckListCap bounds the self-service stuck listing.
const debugStuckListCap = 20

// ListOwnStuckGenerations lists the caller's own generations that have been
// in 'processing' longer than the diagnostic cutoff. The cutoff is much
// shorter than the reaper's minimum age: this view answers "is my job moving"
// long before the reaper would act.
func (a *App) ListOwnStuckGenerations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectOwnProcessingOlderThan,
		userID, a.Config.DebugStuckOlderThan.Seconds(), debugStuckListCap,
	)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list stuck generations failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list generations")
		return
	}
	defer rows.Close()

	now := time.Now().UTC()
	items := []map[string]any{}
	for rows.Next() {
		var id, status, modelID, prompt string
		var createdAt time.Time
		if err := rows.Scan(&id, &status, &modelID, &prompt, &createdAt); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to list generations")
			return
		}
		items = append(items, map[string]any{
			"id":         id,
			"status":     status,
			"model_id":   modelID,
			"prompt":     prompt,
			"created_at": createdAt,
			"age_ms":     now.Sub(createdAt).Milliseconds(),
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"generations":        items,
		"older_than_ms":      a.Config.DebugStuckOlderThan.Milliseconds(),
		"heartbeat_stale_ms": a.Config.HeartbeatStaleAfter.Milliseconds(),
		"reaper_min_age_ms":  a.Config.ReaperMinAge.Milliseconds(),
	})
}

// GenerationDebugDetail exposes the full diagnostic picture of one of the
// caller's generations: status, age, output count, heartbeat and the debug
// trail.
func (a *App) GenerationDebugDetail(w http.ResponseWriter, r *http.Request) {
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

	outputs, err := a.Service.OutputCount(r.Context(), g.ID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("generation_id", g.ID).Msg("debug detail: output count failed")
	}

	now := time.Now().UTC()
	body := map[string]any{
		"id":           g.ID,
		"status":       string(g.Status),
		"model_id":     g.ModelID,
		"created_at":   g.CreatedAt,
		"updated_at":   g.UpdatedAt,
		"age_ms":       now.Sub(g.CreatedAt).Milliseconds(),
		"output_count": outputs,
		"debug_logs":   g.Metadata.DebugLogs,
	}
	if g.Metadata.LastHeartbeatAt != nil {
		body["last_heartbeat_at"] = g.Metadata.LastHeartbeatAt
		body["heartbeat_age_ms"] = now.Sub(*g.Metadata.LastHeartbeatAt).Milliseconds()
	}
	if g.Metadata.LastStep != "" {
		body["last_step"] = g.Metadata.LastStep
	}
	if g.Metadata.Error != "" {
		body["error"] = g.Metadata.Error
	}
	if g.Metadata.TimeoutDetectedAt != nil {
		body["timeout_detected_at"] = g.Metadata.TimeoutDetectedAt
	}
	if g.Metadata.ProviderJobID != "" {
		body["provider_job_id"] = g.Metadata.ProviderJobID
	}
	a.json(w, http.StatusOK, body)
}
