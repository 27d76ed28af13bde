package generation

import (
	"context"
	"encoding/json"
	"time"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/sqlinline"
)

// Recorder writes liveness and diagnostic signals onto a generation's
// sidecar. Every method is best effort: failures are logged and discarded so
// diagnostic plumbing can never abort the generation work itself.
type Recorder struct {
	sql    infra.SQLExecutor
	logger infra.Logger
	now    func() time.Time
}

func NewRecorder(sql infra.SQLExecutor, logger infra.Logger) *Recorder {
	return &Recorder{sql: sql, logger: logger, now: time.Now}
}

// RecordHeartbeat overwrites last_heartbeat_at with the current time,
// leaving every other sidecar field untouched.
func (r *Recorder) RecordHeartbeat(ctx context.Context, generationID string) {
	now := r.now().UTC()
	merge, err := json.Marshal(domain.Sidecar{LastHeartbeatAt: &now})
	if err != nil {
		return
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QMergeGenerationMetadata, generationID, merge); err != nil {
		r.logger.Debug().Err(err).Str("generation_id", generationID).Msg("heartbeat: write failed")
	}
}

// AppendDebugLog appends one progress marker to the bounded debug trail and
// updates last_step. Only those two fields are written back; the merge keeps
// the rest of the sidecar intact. Entries beyond the cap are evicted oldest
// first.
func (r *Recorder) AppendDebugLog(ctx context.Context, generationID, step, extra string) {
	trail := r.readTrail(ctx, generationID)
	trail = append(trail, domain.DebugLogEntry{
		Timestamp: r.now().UTC(),
		Step:      step,
		Extra:     extra,
	})
	if len(trail) > domain.MaxDebugLogEntries {
		trail = trail[len(trail)-domain.MaxDebugLogEntries:]
	}
	encoded, err := json.Marshal(trail)
	if err != nil {
		return
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QSetGenerationDebugTrail, generationID, encoded, step); err != nil {
		r.logger.Debug().Err(err).Str("generation_id", generationID).Msg("debug trail: write failed")
	}
}

func (r *Recorder) readTrail(ctx context.Context, generationID string) []domain.DebugLogEntry {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationDebugTrail, generationID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil
	}
	var trail []domain.DebugLogEntry
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil
	}
	return trail
}
