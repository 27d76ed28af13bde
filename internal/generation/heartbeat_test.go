package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"genboard/internal/domain"
	"genboard/internal/sqlinline"
)

// trailSQL keeps the debug trail in memory the way the jsonb column would,
// feeding reads from the last write.
type trailSQL struct {
	*scriptedSQL
	raw      []byte
	lastStep string
}

func newTrailSQL() *trailSQL {
	return &trailSQL{scriptedSQL: newScriptedSQL(), raw: []byte("[]")}
}

func (s *trailSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if query == sqlinline.QSetGenerationDebugTrail {
		s.raw = append([]byte(nil), args[1].([]byte)...)
		s.lastStep = args[2].(string)
	}
	return s.scriptedSQL.Exec(ctx, query, args...)
}

func (s *trailSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if query == sqlinline.QSelectGenerationDebugTrail {
		return scriptedRow{values: []any{append([]byte(nil), s.raw...)}}
	}
	return s.scriptedSQL.QueryRow(ctx, query, args...)
}

func TestRecordHeartbeatMergesTimestampOnly(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sql := newScriptedSQL()
	rec := NewRecorder(sql, zerolog.Nop())
	rec.now = func() time.Time { return now }

	rec.RecordHeartbeat(context.Background(), "gen-1")

	merges := sql.callsTo(sqlinline.QMergeGenerationMetadata)
	if len(merges) != 1 {
		t.Fatalf("merge writes = %d, want 1", len(merges))
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(merges[0].args[1].([]byte), &payload); err != nil {
		t.Fatalf("merge payload: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("merge payload keys = %d, want only last_heartbeat_at", len(payload))
	}
	if _, ok := payload["last_heartbeat_at"]; !ok {
		t.Fatalf("merge payload = %v", payload)
	}
}

func TestAppendDebugLogCapsTrailAtLimit(t *testing.T) {
	sql := newTrailSQL()
	rec := NewRecorder(sql, zerolog.Nop())
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tick := 0
	rec.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	total := domain.MaxDebugLogEntries + 50
	for i := 1; i <= total; i++ {
		rec.AppendDebugLog(context.Background(), "gen-1", fmt.Sprintf("step-%d", i), "")
	}

	var trail []domain.DebugLogEntry
	if err := json.Unmarshal(sql.raw, &trail); err != nil {
		t.Fatalf("decode trail: %v", err)
	}
	if len(trail) != domain.MaxDebugLogEntries {
		t.Fatalf("trail length = %d, want %d", len(trail), domain.MaxDebugLogEntries)
	}
	if trail[0].Step != fmt.Sprintf("step-%d", total-domain.MaxDebugLogEntries+1) {
		t.Fatalf("oldest kept entry = %q, want eviction of the oldest entries", trail[0].Step)
	}
	if trail[len(trail)-1].Step != fmt.Sprintf("step-%d", total) {
		t.Fatalf("newest entry = %q", trail[len(trail)-1].Step)
	}
	if sql.lastStep != fmt.Sprintf("step-%d", total) {
		t.Fatalf("last_step = %q", sql.lastStep)
	}
	for i := 1; i < len(trail); i++ {
		if trail[i].Timestamp.Before(trail[i-1].Timestamp) {
			t.Fatalf("trail out of order at %d", i)
		}
	}
}

func TestAppendDebugLogSurvivesUnreadableTrail(t *testing.T) {
	sql := newTrailSQL()
	sql.raw = []byte("not json")
	rec := NewRecorder(sql, zerolog.Nop())

	rec.AppendDebugLog(context.Background(), "gen-1", "submitted", "job-9")

	var trail []domain.DebugLogEntry
	if err := json.Unmarshal(sql.raw, &trail); err != nil {
		t.Fatalf("decode trail: %v", err)
	}
	if len(trail) != 1 || trail[0].Step != "submitted" || trail[0].Extra != "job-9" {
		t.Fatalf("trail = %+v", trail)
	}
}
