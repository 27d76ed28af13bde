package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"genboard/internal/analytics"
	"genboard/internal/generation"
	"genboard/internal/infra"
	"genboard/internal/infra/geoip"
	"genboard/internal/registry"
	"genboard/internal/storage"
)

// App bundles the dependencies the HTTP handlers need. Handlers hang off it
// as methods; the router decides which ones are reachable and behind which
// middleware.
type App struct {
	SQL      infra.SQLExecutor
	Logger   zerolog.Logger
	Config   *infra.Config
	Registry *registry.Registry

	Service    *generation.Service
	Recorder   *generation.Recorder
	Reaper     *generation.Reaper
	Spend      *analytics.SpendAggregator
	Engagement *analytics.EngagementAggregator

	Store *storage.ArtifactStore
	Geo   geoip.CountryResolver
}

// Health is the liveness probe.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "genboard"})
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// invalid reports a validation failure with per-field details.
func (a *App) invalid(w http.ResponseWriter, details map[string]string) {
	a.json(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":    "validation",
			"message": "invalid request",
			"details": details,
		},
	})
}
