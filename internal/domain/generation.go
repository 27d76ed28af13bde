package domain

import (
	"encoding/json"
	"time"
)

// GenerationStatus enumerates the generation lifecycle states.
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "pending"
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
	StatusDismissed  GenerationStatus = "dismissed"
)

// IsTerminal reports whether no further status transition is permitted.
func (s GenerationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDismissed:
		return true
	}
	return false
}

// Generation is one user request for AI-generated content.
type Generation struct {
	ID             string
	UserID         string
	SessionID      string
	ModelID        string
	Prompt         string
	NegativePrompt string
	Status         GenerationStatus
	// Cost is set only when the generation completes.
	Cost      *float64
	Metadata  Sidecar
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxDebugLogEntries bounds the sidecar debug trail; the oldest entries are
// evicted first.
const MaxDebugLogEntries = 100

// DebugLogEntry is one advisory progress marker in the sidecar trail.
type DebugLogEntry struct {
	Timestamp time.Time `json:"ts"`
	Step      string    `json:"step"`
	Extra     string    `json:"extra,omitempty"`
}

// Sidecar is the mutable auxiliary record attached to a generation. Every
// field is optional; writers merge the fields they own onto the stored
// record and must leave the rest untouched.
type Sidecar struct {
	LastHeartbeatAt   *time.Time      `json:"last_heartbeat_at,omitempty"`
	LastStep          string          `json:"last_step,omitempty"`
	DebugLogs         []DebugLogEntry `json:"debug_logs,omitempty"`
	Error             string          `json:"error,omitempty"`
	TimeoutDetectedAt *time.Time      `json:"timeout_detected_at,omitempty"`
	ProviderJobID     string          `json:"provider_job_id,omitempty"`
}

// ParseSidecar decodes a stored metadata blob. Corrupt or empty blobs decode
// to the zero Sidecar so callers never fail on diagnostic data.
func ParseSidecar(raw []byte) Sidecar {
	var sc Sidecar
	if len(raw) == 0 {
		return sc
	}
	_ = json.Unmarshal(raw, &sc)
	return sc
}
