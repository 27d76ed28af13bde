package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/middleware"
	"genboard/internal/sqlinline"
)

type patchOutputRequest struct {
	IsStarred  *bool `json:"is_starred"`
	IsApproved *bool `json:"is_approved"`
}

// PatchOutputFlags toggles the curation flags on an output the caller owns.
// Omitted fields keep their current value.
func (a *App) PatchOutputFlags(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req patchOutputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IsStarred == nil && req.IsApproved == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "nothing to update")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpdateOutputFlags,
		chi.URLParam(r, "id"), userID, req.IsStarred, req.IsApproved,
	)
	var o domain.Output
	if err := row.Scan(
		&o.ID, &o.GenerationID, &o.FileURL, &o.FileType,
		&o.Width, &o.Height, &o.IsStarred, &o.IsApproved, &o.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "output not found")
			return
		}
		a.Logger.Error().Err(err).Msg("update output flags failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update output")
		return
	}
	a.json(w, http.StatusOK, outputResponse(o))
}

// GetOutput returns one output scoped to the caller. Ownership travels
// through the owning generation, so an output belonging to someone else is
// indistinguishable from a missing one.
func (a *App) GetOutput(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectOutputForUser,
		chi.URLParam(r, "id"), userID,
	)
	var o domain.Output
	if err := row.Scan(
		&o.ID, &o.GenerationID, &o.FileURL, &o.FileType,
		&o.Width, &o.Height, &o.IsStarred, &o.IsApproved, &o.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "output not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load output failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load output")
		return
	}
	a.json(w, http.StatusOK, outputResponse(o))
}

type createOutputEventRequest struct {
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata"`
}

// CreateOutputEvent appends one engagement event to the log. The event type
// must be in the allow-list; nothing is written otherwise. The caller's
// country, when resolvable, is folded into the event metadata.
func (a *App) CreateOutputEvent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createOutputEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	eventType := domain.OutputEventType(strings.TrimSpace(req.EventType))
	if !domain.ValidOutputEventType(eventType) {
		a.invalid(w, map[string]string{"event_type": "must be one of download, share, view, copy"})
		return
	}

	outputID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectOutputExists, outputID)
	var existing string
	if err := row.Scan(&existing); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "output not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to verify output")
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if country := a.resolveCountry(r); country != "" {
		metadata["country"] = country
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid metadata")
		return
	}

	eventID := uuid.NewString()
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QInsertOutputEvent,
		eventID, outputID, userID, string(eventType), encoded,
	); err != nil {
		a.Logger.Error().Err(err).Msg("insert output event failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record event")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{
		"id":         eventID,
		"event_type": string(eventType),
	})
}

func (a *App) resolveCountry(r *http.Request) string {
	if a.Geo == nil {
		return ""
	}
	ip := r.Header.Get("X-Forwarded-For")
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	country, err := a.Geo.CountryCode(ip)
	if err != nil {
		return ""
	}
	return country
}
