package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"genboard/internal/domain"
	"genboard/internal/sqlinline"
)

func newTestService(sql *scriptedSQL) *Service {
	return NewService(sql, &fakeTx{sql: sql}, zerolog.Nop())
}

func TestCreateRejectsEmptyPrompt(t *testing.T) {
	svc := newTestService(newScriptedSQL())
	_, err := svc.Create(context.Background(), CreateParams{
		UserID:  "user-a",
		ModelID: "imagen-3",
		Prompt:  "   ",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateStartsPending(t *testing.T) {
	sql := newScriptedSQL()
	svc := newTestService(sql)
	g, err := svc.Create(context.Background(), CreateParams{
		UserID:  "user-a",
		ModelID: "imagen-3",
		Prompt:  "a red bicycle",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != domain.StatusPending {
		t.Fatalf("status = %q, want pending", g.Status)
	}
	if g.ID == "" {
		t.Fatal("generation id not assigned")
	}
	if len(sql.callsTo(sqlinline.QInsertGeneration)) != 1 {
		t.Fatal("insert not issued")
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	svc := newTestService(newScriptedSQL())
	if _, err := svc.ClaimNext(context.Background()); !errors.Is(err, ErrNoPending) {
		t.Fatalf("err = %v, want ErrNoPending", err)
	}
}

func TestCompleteRequiresOutputs(t *testing.T) {
	svc := newTestService(newScriptedSQL())
	_, err := svc.Complete(context.Background(), "gen-1", nil, 0.04)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCompleteWritesOutputsAndTransition(t *testing.T) {
	sql := newScriptedSQL()
	svc := newTestService(sql)

	ok, err := svc.Complete(context.Background(), "gen-1", []OutputDraft{
		{FileURL: "https://cdn.example.com/a.png", FileType: "image/png", Width: 1024, Height: 1024},
		{FileURL: "https://cdn.example.com/b.png", FileType: "image/png", Width: 1024, Height: 1024},
	}, 0.078)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !ok {
		t.Fatal("complete reported a lost transition")
	}
	if got := len(sql.callsTo(sqlinline.QInsertOutput)); got != 2 {
		t.Fatalf("output inserts = %d, want 2", got)
	}
	completes := sql.callsTo(sqlinline.QCompleteGeneration)
	if len(completes) != 1 {
		t.Fatalf("complete updates = %d, want 1", len(completes))
	}
	if completes[0].args[1] != 0.078 {
		t.Fatalf("cost = %v", completes[0].args[1])
	}
}

func TestCompleteLostRaceRollsBackOutputs(t *testing.T) {
	sql := newScriptedSQL()
	sql.execTags[sqlinline.QCompleteGeneration] = pgconn.NewCommandTag("UPDATE 0")
	svc := newTestService(sql)

	ok, err := svc.Complete(context.Background(), "gen-1", []OutputDraft{
		{FileURL: "https://cdn.example.com/a.png", FileType: "image/png"},
	}, 0.04)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ok {
		t.Fatal("complete must report false when the generation left 'processing'")
	}
	if got := len(sql.callsTo(sqlinline.QInsertOutput)); got != 0 {
		t.Fatalf("output inserts survived the rollback: %d", got)
	}
}

func TestFailAlreadyTerminalIsNoOp(t *testing.T) {
	sql := newScriptedSQL()
	sql.execTags[sqlinline.QFailGeneration] = pgconn.NewCommandTag("UPDATE 0")
	svc := newTestService(sql)

	ok, err := svc.Fail(context.Background(), "gen-1", "provider exploded")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if ok {
		t.Fatal("fail must report false against a terminal generation")
	}
}

func TestFailRecordsCauseOnSidecar(t *testing.T) {
	sql := newScriptedSQL()
	svc := newTestService(sql)

	ok, err := svc.Fail(context.Background(), "gen-1", "provider exploded")
	if err != nil || !ok {
		t.Fatalf("fail: ok=%v err=%v", ok, err)
	}
	fails := sql.callsTo(sqlinline.QFailGeneration)
	annotation := domain.ParseSidecar(fails[0].args[1].([]byte))
	if annotation.Error != "provider exploded" {
		t.Fatalf("sidecar error = %q", annotation.Error)
	}
}

func TestDismissProcessingGeneration(t *testing.T) {
	sql := newScriptedSQL()
	svc := newTestService(sql)
	if err := svc.Dismiss(context.Background(), "gen-1", "user-a"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
}

func TestDismissTerminalGeneration(t *testing.T) {
	sql := newScriptedSQL()
	sql.execTags[sqlinline.QDismissGeneration] = pgconn.NewCommandTag("UPDATE 0")
	now := time.Now().UTC()
	sql.singles[sqlinline.QSelectGenerationForUser] = scriptedRow{values: []any{
		"gen-1", "user-a", "sess-1", "imagen-3", "prompt", "",
		string(domain.StatusCompleted), 0.04, []byte(`{}`), now, now,
	}}
	svc := newTestService(sql)

	err := svc.Dismiss(context.Background(), "gen-1", "user-a")
	if !errors.Is(err, domain.ErrTerminalState) {
		t.Fatalf("err = %v, want ErrTerminalState", err)
	}
}

func TestDismissUnknownGeneration(t *testing.T) {
	sql := newScriptedSQL()
	sql.execTags[sqlinline.QDismissGeneration] = pgconn.NewCommandTag("UPDATE 0")
	svc := newTestService(sql)

	err := svc.Dismiss(context.Background(), "gen-1", "user-a")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetForUserParsesSidecar(t *testing.T) {
	sql := newScriptedSQL()
	now := time.Now().UTC()
	sql.singles[sqlinline.QSelectGenerationForUser] = scriptedRow{values: []any{
		"gen-1", "user-a", "sess-1", "veo-2", "a drone shot", "",
		string(domain.StatusProcessing), nil, []byte(`{"last_step":"polling","provider_job_id":"op-7"}`), now, now,
	}}
	svc := newTestService(sql)

	g, err := svc.GetForUser(context.Background(), "gen-1", "user-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Metadata.LastStep != "polling" || g.Metadata.ProviderJobID != "op-7" {
		t.Fatalf("sidecar = %+v", g.Metadata)
	}
	if g.Cost != nil {
		t.Fatalf("cost = %v, want nil while processing", g.Cost)
	}
}
