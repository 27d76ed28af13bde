package handlers

import (
	"net/http"
)

// CleanupStuckGenerations runs one reaper sweep on demand. The sweep is
// idempotent: a second call right after the first finds nothing to clean and
// reports zero.
func (a *App) CleanupStuckGenerations(w http.ResponseWriter, r *http.Request) {
	result, err := a.Reaper.Sweep(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("cleanup sweep failed")
		a.error(w, http.StatusInternalServerError, "internal", "sweep failed")
		return
	}
	message := "stuck generations cleaned"
	if result.Cleaned == 0 {
		message = "no stuck generations found"
	}
	body := map[string]any{
		"message":        message,
		"cleaned":        result.Cleaned,
		"generation_ids": result.GenerationIDs,
	}
	if len(result.ByUser) > 0 {
		body["by_user"] = result.ByUser
	}
	a.json(w, http.StatusOK, body)
}

// SpendingReport serves the cost breakdown across providers and models plus
// the trailing daily series.
func (a *App) SpendingReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.Spend.Report(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("spending report failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build spending report")
		return
	}
	a.json(w, http.StatusOK, report)
}

// EngagementSummary serves the k-anonymity gated engagement aggregates.
func (a *App) EngagementSummary(w http.ResponseWriter, r *http.Request) {
	report, err := a.Engagement.Report(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("engagement report failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build engagement report")
		return
	}
	a.json(w, http.StatusOK, report)
}
