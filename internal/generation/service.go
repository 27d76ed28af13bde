package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"genboard/internal/domain"
	"genboard/internal/infra"
	"genboard/internal/sqlinline"
)

// ErrNoPending signals an empty queue to the worker claim loop.
var ErrNoPending = errors.New("no pending generation")

// Service owns every status write of the generation state machine. All
// transitions away from 'processing' go through conditional updates so a
// concurrent writer losing the race observes a silent no-op, never a
// corrupting overwrite.
type Service struct {
	sql    infra.SQLExecutor
	tx     infra.TxRunner
	logger infra.Logger
}

func NewService(sql infra.SQLExecutor, tx infra.TxRunner, logger infra.Logger) *Service {
	return &Service{sql: sql, tx: tx, logger: logger}
}

// CreateParams carries the validated inputs for a new generation.
type CreateParams struct {
	UserID         string
	SessionID      string
	ModelID        string
	Prompt         string
	NegativePrompt string
}

// Create persists a new generation in 'pending'.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Generation, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required: %w", domain.ErrInvalidInput)
	}
	id := uuid.NewString()
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertGeneration,
		id, p.UserID, p.SessionID, p.ModelID, p.Prompt, p.NegativePrompt,
	); err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	now := time.Now().UTC()
	return &domain.Generation{
		ID:             id,
		UserID:         p.UserID,
		SessionID:      p.SessionID,
		ModelID:        p.ModelID,
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// GetForUser loads a generation visible to userID. Absent and not-owned are
// indistinguishable to the caller.
func (s *Service) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectGenerationForUser, id, userID)
	var g domain.Generation
	var metadata []byte
	if err := row.Scan(
		&g.ID, &g.UserID, &g.SessionID, &g.ModelID, &g.Prompt, &g.NegativePrompt,
		&g.Status, &g.Cost, &metadata, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	g.Metadata = domain.ParseSidecar(metadata)
	return &g, nil
}

// ClaimNext atomically moves the oldest pending generation to 'processing'
// and returns it. Concurrent workers skip each other's claims.
func (s *Service) ClaimNext(ctx context.Context) (*domain.Generation, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QClaimPendingGeneration)
	var g domain.Generation
	var metadata []byte
	if err := row.Scan(
		&g.ID, &g.UserID, &g.SessionID, &g.ModelID, &g.Prompt, &g.NegativePrompt,
		&metadata, &g.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNoPending
		}
		return nil, err
	}
	g.Status = domain.StatusProcessing
	g.Metadata = domain.ParseSidecar(metadata)
	return &g, nil
}

// OutputDraft is one artifact to be written alongside a completed transition.
type OutputDraft struct {
	FileURL  string
	FileType string
	Width    int
	Height   int
}

var errTransitionLost = errors.New("terminal transition lost")

// Complete writes the outputs and the processing→completed transition in one
// transaction. It returns false without error when a concurrent writer (the
// reaper or a dismissal) already moved the generation out of 'processing';
// the transaction, including the output rows, is rolled back in that case.
func (s *Service) Complete(ctx context.Context, id string, outputs []OutputDraft, cost float64) (bool, error) {
	if len(outputs) == 0 {
		return false, fmt.Errorf("completed generation requires at least one output: %w", domain.ErrInvalidInput)
	}
	annotation, err := json.Marshal(map[string]any{"last_step": "completed"})
	if err != nil {
		return false, err
	}
	err = s.tx.WithTx(ctx, func(tx infra.SQLExecutor) error {
		for _, o := range outputs {
			if _, err := tx.Exec(ctx, sqlinline.QInsertOutput,
				uuid.NewString(), id, o.FileURL, o.FileType, o.Width, o.Height,
			); err != nil {
				return fmt.Errorf("insert output: %w", err)
			}
		}
		tag, err := tx.Exec(ctx, sqlinline.QCompleteGeneration, id, cost, annotation)
		if err != nil {
			return fmt.Errorf("complete generation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errTransitionLost
		}
		return nil
	})
	if errors.Is(err, errTransitionLost) {
		s.logger.Warn().Str("generation_id", id).Msg("generation: completion skipped, already terminal")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fail conditionally moves a processing generation to 'failed', merging the
// error annotation onto the sidecar. Returns false when the generation was
// no longer in 'processing'.
func (s *Service) Fail(ctx context.Context, id, cause string) (bool, error) {
	annotation, err := json.Marshal(domain.Sidecar{Error: cause})
	if err != nil {
		return false, err
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QFailGeneration, id, annotation)
	if err != nil {
		return false, fmt.Errorf("fail generation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Dismiss is the owner-initiated abandonment of a still-processing
// generation. A generation already terminal is reported as
// domain.ErrTerminalState; one the caller cannot see as domain.ErrNotFound.
func (s *Service) Dismiss(ctx context.Context, id, userID string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QDismissGeneration, id, userID)
	if err != nil {
		return fmt.Errorf("dismiss generation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetForUser(ctx, id, userID); err != nil {
		return err
	}
	return domain.ErrTerminalState
}

// RecordProviderJobID stores the provider handle on the sidecar so a polling
// driver can be diagnosed after the fact.
func (s *Service) RecordProviderJobID(ctx context.Context, id, providerJobID string) error {
	merge, err := json.Marshal(domain.Sidecar{ProviderJobID: providerJobID})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QMergeGenerationMetadata, id, merge)
	return err
}

// OutputCount returns the number of outputs written for a generation.
func (s *Service) OutputCount(ctx context.Context, id string) (int, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QCountOutputsForGeneration, id)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
