package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"genboard/internal/generation"
	"genboard/internal/sqlinline"
)

// reaperTestSQL serves one stuck candidate until it is force-failed, after
// which the queue is empty, mimicking a real second sweep.
type reaperTestSQL struct {
	stuckID string
	reaped  bool
}

func (s *reaperTestSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if query == sqlinline.QFailGeneration && !s.reaped && args[0] == s.stuckID {
		s.reaped = true
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (s *reaperTestSQL) QueryRow(context.Context, string, ...any) pgx.Row {
	return NewSimpleRow(nil)
}

func (s *reaperTestSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	if query == sqlinline.QSelectStuckCandidates && !s.reaped {
		return &stuckCandidateRows{id: s.stuckID}, nil
	}
	return &stuckCandidateRows{done: true}, nil
}

type stuckCandidateRows struct {
	TestRowsBase
	id   string
	done bool
}

func (r *stuckCandidateRows) Next() bool {
	if r.done {
		return false
	}
	r.done = true
	return true
}

func (r *stuckCandidateRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.id
	*dest[1].(*string) = "22222222-2222-4222-8222-222222222222"
	*dest[2].(*[]byte) = []byte(`{}`)
	*dest[3].(*time.Time) = time.Now().UTC().Add(-time.Hour)
	return nil
}

func TestCleanupStuckGenerationsIsIdempotent(t *testing.T) {
	sql := &reaperTestSQL{stuckID: "44444444-4444-4444-8444-444444444444"}
	app := &App{
		Logger: zerolog.Nop(),
		Reaper: generation.NewReaper(sql, zerolog.Nop(), 10*time.Minute, 5*time.Minute),
	}

	run := func() generation.SweepResult {
		req := httptest.NewRequest(http.MethodPost, "/v1/cleanup-stuck-generations", nil)
		rec := httptest.NewRecorder()
		app.CleanupStuckGenerations(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var result generation.SweepResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		return result
	}

	first := run()
	if first.Cleaned != 1 {
		t.Fatalf("first sweep cleaned = %d, want 1", first.Cleaned)
	}
	if first.GenerationIDs[0] != sql.stuckID {
		t.Fatalf("cleaned ids = %v", first.GenerationIDs)
	}

	second := run()
	if second.Cleaned != 0 {
		t.Fatalf("second sweep cleaned = %d, want 0", second.Cleaned)
	}
}
