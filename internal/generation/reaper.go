package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/sqlinline"
)

// Reaper finds generations abandoned in 'processing' after the driving
// process died and force-fails them. The heuristic is two-staged: only jobs
// older than MinAge are considered at all, and of those only the ones whose
// heartbeat is missing or stale are reaped. MinAge is deliberately longer
// than the slowest legitimate render; staleness is the liveness signal.
type Reaper struct {
	sql    infra.SQLExecutor
	logger infra.Logger

	minAge     time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func NewReaper(sql infra.SQLExecutor, logger infra.Logger, minAge, staleAfter time.Duration) *Reaper {
	return &Reaper{
		sql:        sql,
		logger:     logger,
		minAge:     minAge,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SweepResult reports one sweep for observability.
type SweepResult struct {
	Cleaned       int            `json:"cleaned"`
	GenerationIDs []string       `json:"generation_ids"`
	ByUser        map[string]int `json:"by_user,omitempty"`
}

// Sweep scans for stuck generations and transitions each one
// processing→failed. Candidates are handled independently: one failing
// update never aborts the rest. The sweep is idempotent and safe to run
// concurrently; a generation another sweep already reaped loses the
// conditional update here and is silently skipped.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{GenerationIDs: []string{}, ByUser: map[string]int{}}

	rows, err := r.sql.Query(ctx, sqlinline.QSelectStuckCandidates, r.minAge.Seconds())
	if err != nil {
		return result, fmt.Errorf("select stuck candidates: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id      string
		userID  string
		sidecar domain.Sidecar
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var metadata []byte
		var createdAt time.Time
		if err := rows.Scan(&c.id, &c.userID, &metadata, &createdAt); err != nil {
			r.logger.Error().Err(err).Msg("reaper: scan candidate failed")
			continue
		}
		c.sidecar = domain.ParseSidecar(metadata)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		// The candidates collected so far are still actionable; the rest
		// will be picked up by the next sweep.
		r.logger.Error().Err(err).Msg("reaper: candidate scan truncated")
	}

	now := r.now().UTC()
	for _, c := range candidates {
		if !r.heartbeatStale(c.sidecar, now) {
			continue
		}
		reaped, err := r.reap(ctx, c.id, now)
		if err != nil {
			r.logger.Error().Err(err).Str("generation_id", c.id).Msg("reaper: reap failed")
			continue
		}
		if !reaped {
			// A concurrent sweep or the owner got there first.
			continue
		}
		result.Cleaned++
		result.GenerationIDs = append(result.GenerationIDs, c.id)
		result.ByUser[c.userID]++
	}

	if result.Cleaned > 0 {
		r.logger.Info().Int("cleaned", result.Cleaned).Msg("reaper: sweep finished")
	}
	return result, nil
}

// heartbeatStale reports whether the sidecar lacks a usable heartbeat or the
// heartbeat is older than the staleness threshold.
func (r *Reaper) heartbeatStale(sc domain.Sidecar, now time.Time) bool {
	if sc.LastHeartbeatAt == nil {
		return true
	}
	return now.Sub(*sc.LastHeartbeatAt) > r.staleAfter
}

func (r *Reaper) reap(ctx context.Context, id string, now time.Time) (bool, error) {
	annotation, err := json.Marshal(domain.Sidecar{
		Error: fmt.Sprintf("generation timed out: no heartbeat within %s after the minimum age of %s",
			r.staleAfter, r.minAge),
		TimeoutDetectedAt: &now,
	})
	if err != nil {
		return false, err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFailGeneration, id, annotation)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
