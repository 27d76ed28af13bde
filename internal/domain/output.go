package domain

import "time"

// Output is one artifact produced by a completed generation.
type Output struct {
	ID           string
	GenerationID string
	FileURL      string
	FileType     string
	Width        int
	Height       int
	IsStarred    bool
	IsApproved   bool
	CreatedAt    time.Time
}

// OutputEventType enumerates the engagement events a user can log against an
// output. The set is a fixed allow-list; anything else is rejected.
type OutputEventType string

const (
	EventDownload OutputEventType = "download"
	EventShare    OutputEventType = "share"
	EventView     OutputEventType = "view"
	EventCopy     OutputEventType = "copy"
)

// ValidOutputEventType reports whether t is in the allow-list.
func ValidOutputEventType(t OutputEventType) bool {
	switch t {
	case EventDownload, EventShare, EventView, EventCopy:
		return true
	}
	return false
}

// OutputEvent is an append-only engagement log entry. Rows are never updated
// or deleted.
type OutputEvent struct {
	ID        string
	OutputID  string
	UserID    string
	EventType OutputEventType
	Metadata  map[string]any
	CreatedAt time.Time
}
